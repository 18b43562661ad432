package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []*MetricsInfo
}

func (r *recordingLogger) Log(info *MetricsInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, info)
}

func TestMetricsInfoToJSON(t *testing.T) {
	rec := &recordingLogger{}
	m := NewMetricsCollector(rec)
	m.Info.Method = "/aoiraster.Engine/Statistics"
	m.Info.RemoteAddr = "10.0.0.1:5000"
	m.Info.Status = "OK"
	m.Info.AOI.Geometry = orb.Polygon{{{16, 48}, {16.01, 48}, {16.01, 48.01}, {16, 48.01}, {16, 48}}}
	m.Info.Engine.NumItems = 3
	m.Log()

	require.Len(t, rec.infos, 1)
	assert.NotEmpty(t, rec.infos[0].ReqTime)

	s, err := m.Info.ToJSON()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	assert.Equal(t, "10.0.0.1", doc["remote_host"])
	assert.Equal(t, "5000", doc["remote_port"])
	assert.NotContains(t, doc, "error_kind")

	aoi := doc["aoi"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(aoi["wkt"].(string), "POLYGON(("))
	// about 0.74 km by 1.11 km at 48 degrees north
	assert.InDelta(t, 0.83, aoi["area_km2"].(float64), 0.02)
	assert.Equal(t, []interface{}{16.0, 48.0, 16.01, 48.01}, aoi["bound"])
}

func TestMetricsInfoWithoutAOI(t *testing.T) {
	m := NewMetricsCollector(nil)
	m.Log()
	s, err := m.Info.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, s, `"wkt":"POLYGON EMPTY"`)
}

func TestMetricsProjectedAOIHasNoArea(t *testing.T) {
	info := &MetricsInfo{AOI: &AOIInfo{CRS: "EPSG:32633", Geometry: orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 0}}}}}
	_, err := info.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, 0.0, info.AOI.AreaKm2)
}

func TestFileLoggerWritesRecords(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLogger(dir, 0, 0, false)

	for i := 0; i < 4; i++ {
		m := NewMetricsCollector(l)
		m.Info.Method = "/aoiraster.Engine/IsCloudy"
		m.Log()
	}

	count := func() int {
		n := 0
		for i := 0; i < defaultLogWriters; i++ {
			b, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("log%d", i)))
			if err != nil {
				continue
			}
			n += strings.Count(string(b), "IsCloudy")
		}
		return n
	}
	assert.Eventually(t, func() bool { return count() == 4 }, 5*time.Second, 10*time.Millisecond)
}

func TestFileLoggerRotates(t *testing.T) {
	dir := t.TempDir()
	l := &FileLogger{LogDir: dir, MaxLogFileSize: 1, MaxLogFiles: 2}
	l.log = NewStdoutLogger().log

	f, err := l.openLogFile(0)
	require.NoError(t, err)
	_, err = f.WriteString("x")
	require.NoError(t, err)

	f, err = l.tryRotateLogFile(f, 0)
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(filepath.Join(dir, "log0.0"))
	assert.NoError(t, err)
	fi, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(0), fi.Size())
}
