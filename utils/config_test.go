package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/11904212/pcc-demo-api/processor"
)

const landsatYAML = `
service_config:
  pool_size: 4
  memcache_servers: ["localhost:11211"]
  cache_ttl: 600
  validation:
    max_area_km2: 25
collections:
  - collection: landsat-c2-l2
    nir_band: nir08
    red_band: red
    true_color_band: rendered_preview
    classification_band: qa_pixel
    clear_values: [21824, 21952]
    indices:
      ndmi: (nir08 - swir16) / (nir08 + swir16)
`

const modisJSON = `{
	"collections": [
		{"collection": "modis-13q1", "nir_band": "nir", "red_band": "red"}
	]
}`

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFileYAMLDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", landsatYAML)

	config := &Config{}
	require.NoError(t, config.LoadConfigFile(path))

	sc := config.ServiceConfig
	assert.Equal(t, 4, sc.PoolSize)
	assert.Equal(t, DefaultMaxInFlight, sc.MaxInFlight)
	assert.Equal(t, DefaultRecvMsgSize, sc.MaxRecvMsgSize)
	assert.Equal(t, int32(600), sc.CacheTTL)
	assert.Equal(t, 25.0, sc.Validation.MaxAreaKm2)
	assert.Equal(t, 1.1, sc.Validation.AreaTolerance)

	require.Len(t, config.Collections, 1)
	p := config.Collections[0]
	assert.Equal(t, "landsat-c2-l2", p.Collection)
	assert.Equal(t, []int{21824, 21952}, p.ClearValues)
	assert.Contains(t, p.Indices, "ndmi")
}

func TestLoadConfigFileRejectsBadProfiles(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.json", `{"collections": [{"collection": "x", "nir_band": "a"}]}`)
	config := &Config{}
	err := config.LoadConfigFile(path)
	assert.ErrorIs(t, err, processor.ErrValidation)

	path = writeConfig(t, t.TempDir(), "config.json", `{"collections": [`)
	assert.Error(t, config.LoadConfigFile(path))
}

func TestLoadAllConfigFilesAndBuildRegistry(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.yaml", landsatYAML)
	writeConfig(t, filepath.Join(root, "modis"), "config.json", modisJSON)

	configMap, err := LoadAllConfigFiles(root)
	require.NoError(t, err)
	require.Len(t, configMap, 2)
	assert.Contains(t, configMap, ".")
	assert.Contains(t, configMap, "modis")
	assert.Equal(t, 4, RootService(configMap).PoolSize)

	extra := &processor.CollectionProfile{Collection: "naip", NIRBand: "nir", RedBand: "red"}
	reg, err := BuildRegistry(configMap, extra)
	require.NoError(t, err)
	assert.Equal(t, []string{"landsat-c2-l2", "modis-13q1", "naip", "sentinel-2-l2a"}, reg.Collections())

	_, err = BuildRegistry(configMap, &processor.CollectionProfile{Collection: "modis-13q1", NIRBand: "n", RedBand: "r"})
	assert.ErrorIs(t, err, processor.ErrValidation)
}

func TestBuildRegistryOverridesDefaults(t *testing.T) {
	override := &processor.CollectionProfile{Collection: "sentinel-2-l2a", NIRBand: "B8A", RedBand: "B04"}
	reg, err := BuildRegistry(nil, override)
	require.NoError(t, err)

	p, err := reg.Lookup("sentinel-2-l2a")
	require.NoError(t, err)
	assert.Equal(t, "B8A", p.NIRBand)
}

func TestLoadAllConfigFilesEmptyDir(t *testing.T) {
	_, err := LoadAllConfigFiles(t.TempDir())
	assert.Error(t, err)
	assert.Equal(t, processor.DefaultPoolSize, RootService(nil).PoolSize)
}
