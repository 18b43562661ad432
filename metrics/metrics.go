package metrics

import (
	"bytes"
	"encoding/json"
	"math"
	"net"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	log "github.com/sirupsen/logrus"
)

// AOIInfo describes the area of interest of a request.
type AOIInfo struct {
	Geometry orb.Geometry `json:"-"`
	CRS      string       `json:"crs"`
	WKT      string       `json:"wkt"`
	Bound    []float64    `json:"bound"`
	// AreaKm2 is only set for geographic AOIs.
	AreaKm2 float64 `json:"area_km2"`
}

type EngineInfo struct {
	Duration   time.Duration `json:"duration"`
	Collection string        `json:"collection"`
	NumItems   int           `json:"num_items"`
	NumResults int           `json:"num_results"`
	Pixels     int           `json:"pixels"`
	BytesOut   int           `json:"bytes_out"`
}

type MetricsInfo struct {
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	Method      string        `json:"method"`
	RemoteAddr  string        `json:"remote_addr"`
	RemoteHost  string        `json:"remote_host"`
	RemotePort  string        `json:"remote_port"`
	Status      string        `json:"status"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	AOI         *AOIInfo      `json:"aoi"`
	Engine      *EngineInfo   `json:"engine"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
	start  time.Time
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		Info: &MetricsInfo{
			ReqTime: now.Format(time.RFC3339Nano),
			AOI:     &AOIInfo{},
			Engine:  &EngineInfo{},
		},
		logger: logger,
		start:  now,
	}
}

// Log stamps the request duration and hands the record to the logger.
func (m *MetricsCollector) Log() {
	m.Info.ReqDuration = time.Since(m.start)
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)
	i.normaliseGeometry()

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i *MetricsInfo) normaliseNetworkAddr(addr string) {
	if addr == "" {
		return
	}
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		i.RemoteHost = host
		i.RemotePort = port
	} else {
		i.RemoteHost = addr
	}
}

func (i *MetricsInfo) normaliseGeometry() {
	if i.AOI == nil {
		return
	}
	if i.AOI.Geometry == nil {
		i.AOI.WKT = "POLYGON EMPTY"
		return
	}

	g := i.AOI.Geometry
	i.AOI.WKT = wkt.MarshalString(g)
	b := g.Bound()
	i.AOI.Bound = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}

	if i.AOI.CRS == "" || i.AOI.CRS == "EPSG:4326" {
		i.AOI.AreaKm2 = geodesicArea(g) / 1e6
	} else {
		log.WithField("component", "metrics").Debugf("no area for aoi in %s", i.AOI.CRS)
	}
}

func geodesicArea(g orb.Geometry) float64 {
	switch g := g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return math.Abs(geo.Area(g))
	}
	return 0
}
