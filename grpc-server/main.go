package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	reuseport "github.com/kavu/go_reuseport"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/11904212/pcc-demo-api/metrics"
	"github.com/11904212/pcc-demo-api/processor"
	"github.com/11904212/pcc-demo-api/utils"
	"github.com/11904212/pcc-demo-api/worker/engineservice"
	"github.com/11904212/pcc-demo-api/worker/gdalprocess"
)

// profilesDSN prefers the AOI_PROFILES_DSN environment variable over
// the config file.
func profilesDSN(configMap map[string]*utils.Config) string {
	if dsn := os.Getenv("AOI_PROFILES_DSN"); dsn != "" {
		return dsn
	}
	return utils.RootService(configMap).ProfilesDSN
}

func loadProfiles(configMap map[string]*utils.Config) (*processor.ProfileRegistry, error) {
	var extra []*processor.CollectionProfile
	if dsn := profilesDSN(configMap); dsn != "" {
		db, err := utils.OpenProfilesDB(dsn)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if extra, err = utils.LoadProfilesDB(context.Background(), db); err != nil {
			return nil, err
		}
	}
	return utils.BuildRegistry(configMap, extra...)
}

// seedProfiles upserts the profiles of the config files into the
// profile table.
func seedProfiles(configMap map[string]*utils.Config) error {
	dsn := profilesDSN(configMap)
	if dsn == "" {
		return fmt.Errorf("no profile database configured")
	}
	db, err := utils.OpenProfilesDB(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(utils.ProfilesSchema); err != nil {
		return err
	}
	for _, config := range configMap {
		for _, p := range config.Collections {
			if err := utils.SaveProfileDB(context.Background(), db, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", 0, "Maximum number of items processed concurrently per batch, overrides the config file.")
	confDir := flag.String("conf", utils.EtcDir, "Directory holding config.yaml or config.json files.")
	envFile := flag.String("env", ".env", "Environment file loaded before reading flags from the environment.")
	seed := flag.Bool("seed_profiles", false, "Store the collection profiles of the config files in the profile database before serving.")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to load %s: %v", *envFile, err)
	}
	if *debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.WithField("component", "grpc-server")

	utils.EtcDir = *confDir
	configMap, err := utils.LoadAllConfigFiles(utils.EtcDir)
	if err != nil {
		logger.Warnf("no usable config under %s, using built in profiles: %v", utils.EtcDir, err)
		configMap = map[string]*utils.Config{}
	}
	sc := utils.RootService(configMap)
	if *poolSize > 0 {
		sc.PoolSize = *poolSize
	}

	if *seed {
		if err := seedProfiles(configMap); err != nil {
			logger.Fatalf("failed to seed collection profiles: %v", err)
		}
	}

	registry, err := loadProfiles(configMap)
	if err != nil {
		logger.Fatalf("failed to load collection profiles: %v", err)
	}
	profiles := processor.NewSwappableProfiles(registry)
	stopWatch := utils.WatchConfig(logger, profiles, func() (*processor.ProfileRegistry, error) {
		confMap, err := utils.LoadAllConfigFiles(utils.EtcDir)
		if err != nil {
			return nil, err
		}
		return loadProfiles(confMap)
	})
	defer stopWatch()

	gdalprocess.RegisterGDALDrivers()
	reproj := gdalprocess.NewReprojector(gdalprocess.DefaultReprojectorConfig())

	var cache processor.StatsCache
	if len(sc.MemcacheServers) > 0 {
		cache = utils.NewStatsCache(sc.CacheTTL, sc.MemcacheServers...)
	}

	engine, err := processor.NewEngine(processor.EngineConfig{
		Profiles:    profiles,
		Source:      gdalprocess.NewSource(nil, nil),
		Sink:        gdalprocess.NewSink(sc.TempDir),
		Reprojector: reproj,
		Validation:  sc.Validation,
		Cache:       cache,
		PoolSize:    sc.PoolSize,
	})
	if err != nil {
		logger.Fatalf("failed to create engine: %v", err)
	}

	var metricsLogger metrics.Logger = metrics.NewStdoutLogger()
	if sc.MetricsLogDir != "" {
		if err := os.MkdirAll(filepath.Clean(sc.MetricsLogDir), 0755); err != nil {
			logger.Fatalf("failed to create metrics log dir: %v", err)
		}
		metricsLogger = metrics.NewFileLogger(sc.MetricsLogDir, 0, 0, *debug)
	}

	srv, err := engineservice.NewServer(engineservice.ServerConfig{
		Engine:      engine,
		Reprojector: reproj,
		MaxInFlight: sc.MaxInFlight,
		Metrics:     metricsLogger,
	})
	if err != nil {
		logger.Fatalf("failed to create engine service: %v", err)
	}

	s := grpc.NewServer(grpc.MaxRecvMsgSize(sc.MaxRecvMsgSize))
	engineservice.RegisterEngineServer(s, srv)

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		logger.Info("shutting down, waiting for requests in flight")
		s.GracefulStop()
	}()

	logger.Infof("serving %s on :%d, collections: %v", engineservice.ServiceName, *port, registry.Collections())
	if err := s.Serve(lis); err != nil {
		logger.Fatalf("failed to serve: %v", err)
	}
	srv.Wait()
}
