package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/11904212/pcc-demo-api/processor"
	"github.com/11904212/pcc-demo-api/utils"
	"github.com/11904212/pcc-demo-api/worker/engineservice"
)

var (
	verbose   bool
	confDir   string
	server    string
	aoiPath   string
	aoiCRS    string
	itemsPath string

	index   string
	itemID  string
	outPath string

	be backend
)

var rootCmd = &cobra.Command{
	Use:   "aoistat",
	Short: "NDVI, cloud and true colour products of satellite items over an area of interest",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		if !cmd.Flags().Changed("conf") {
			if dir := os.Getenv("AOISTAT_CONF"); dir != "" {
				confDir = dir
			}
		}
		var err error
		if server != "" {
			be, err = newRemoteBackend(server)
		} else {
			be, err = newLocalBackend(confDir)
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if be != nil {
			be.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&confDir, "conf", utils.EtcDir, "directory holding config.yaml or config.json files")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "engine service address, run in process when empty")
	rootCmd.PersistentFlags().StringVar(&aoiPath, "aoi", "", "GeoJSON file holding the area of interest")
	rootCmd.PersistentFlags().StringVar(&aoiCRS, "crs", "", "crs of the area of interest (default EPSG:4326)")
	rootCmd.PersistentFlags().StringVar(&itemsPath, "items", "", "JSON file holding an array of items")
	rootCmd.MarkPersistentFlagRequired("aoi")
	rootCmd.MarkPersistentFlagRequired("items")

	statsCmd.Flags().StringVar(&index, "index", "", "named index of the collection profile instead of NDVI")
	for _, c := range []*cobra.Command{ndviCmd, trueColorCmd} {
		c.Flags().StringVar(&itemID, "item", "", "item id, optional when the items file holds a single item")
		c.Flags().StringVarP(&outPath, "out", "o", "", "output file, format follows the extension (.tif or .png)")
		c.MarkFlagRequired("out")
	}

	rootCmd.AddCommand(statsCmd, cloudyCmd, ndviCmd, trueColorCmd)
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to load .env: %v", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode gives every error kind its own status.
func exitCode(err error) int {
	switch processor.ErrorKind(err) {
	case "validation", "unknown_crs", "transform_failure":
		return 2
	case "unsupported_collection", "empty_statistic":
		return 3
	case "io":
		return 4
	}
	return 1
}

func loadInputs() (processor.AOI, []processor.Item, error) {
	raw, err := os.ReadFile(aoiPath)
	if err != nil {
		return processor.AOI{}, nil, err
	}
	aoi, err := utils.DecodeAOI(raw, aoiCRS)
	if err != nil {
		return processor.AOI{}, nil, err
	}

	raw, err = os.ReadFile(itemsPath)
	if err != nil {
		return processor.AOI{}, nil, err
	}
	items, err := utils.DecodeItems(raw)
	if err != nil {
		return processor.AOI{}, nil, err
	}
	return aoi, items, nil
}

func pickItem(items []processor.Item, id string) (processor.Item, error) {
	if id == "" {
		if len(items) == 1 {
			return items[0], nil
		}
		return processor.Item{}, errors.Wrapf(processor.ErrValidation, "%d items, choose one with --item", len(items))
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return processor.Item{}, errors.Wrapf(processor.ErrValidation, "no item %s", id)
}

// indexRow is one CSV line of index statistics.
type indexRow struct {
	ItemID string  `csv:"item_id"`
	Index  string  `csv:"index"`
	Min    float64 `csv:"min"`
	Max    float64 `csv:"max"`
	Mean   float64 `csv:"mean"`
	Count  int     `csv:"count"`
}

func writeStatsCSV(w io.Writer, stats []processor.NdviStats) error {
	return gocsv.Marshal(&stats, w)
}

func writeIndexCSV(w io.Writer, rows []indexRow) error {
	return gocsv.Marshal(&rows, w)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print NDVI (or index) statistics of every item as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		aoi, items, err := loadInputs()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if index != "" {
			rows := make([]indexRow, 0, len(items))
			bar := progressbar.Default(int64(len(items)), "index statistics")
			for _, item := range items {
				st, err := be.IndexStatistics(ctx, item, aoi, index)
				bar.Add(1)
				if errors.Is(err, processor.ErrEmptyStatistic) {
					log.Debugf("item %s has no finite %s sample", item.ID, index)
					continue
				}
				if err != nil {
					return err
				}
				rows = append(rows, indexRow{ItemID: item.ID, Index: index, Min: st.Min, Max: st.Max, Mean: st.Mean, Count: st.Count})
			}
			return writeIndexCSV(cmd.OutOrStdout(), rows)
		}

		bar := progressbar.Default(int64(len(items)), "NDVI statistics")
		stats, err := be.BatchStatistics(ctx, items, aoi, func() { bar.Add(1) })
		if err != nil {
			return err
		}
		return writeStatsCSV(cmd.OutOrStdout(), stats)
	},
}

var cloudyCmd = &cobra.Command{
	Use:   "cloudy",
	Short: "print the ids of the items that are clear over the area of interest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		aoi, items, err := loadInputs()
		if err != nil {
			return err
		}
		ids, err := be.FilterCloudy(cmd.Context(), items, aoi)
		if err != nil {
			return err
		}
		log.Infof("%d of %d items are clear", len(ids), len(items))
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func imageCmd(product, short string) *cobra.Command {
	return &cobra.Command{
		Use:   product,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			aoi, items, err := loadInputs()
			if err != nil {
				return err
			}
			item, err := pickItem(items, itemID)
			if err != nil {
				return err
			}
			out, err := be.Image(cmd.Context(), product, item, aoi, formatOf(outPath))
			if err != nil {
				return err
			}
			return os.WriteFile(outPath, out, 0644)
		},
	}
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return engineservice.FormatPNG
	}
	return engineservice.FormatGeoTIFF
}

var ndviCmd = imageCmd(productNDVI, "write the NDVI of one item over the area of interest")
var trueColorCmd = imageCmd(productTrueColor, "write the true colour crop of one item over the area of interest")
