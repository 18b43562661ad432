package utils

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/11904212/pcc-demo-api/processor"
)

const polygonJSON4326 = `{"type":"Polygon","coordinates":[[[16.0,48.0],[16.01,48.0],[16.01,48.01],[16.0,48.01],[16.0,48.0]]]}`

func TestDecodeAOIGeometryFeatureAndCollection(t *testing.T) {
	docs := []string{
		polygonJSON4326,
		`{"type":"Feature","properties":{},"geometry":` + polygonJSON4326 + `}`,
		`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":` + polygonJSON4326 + `}]}`,
	}
	for _, doc := range docs {
		aoi, err := DecodeAOI([]byte(doc), "")
		require.NoError(t, err, doc)
		poly, ok := aoi.Geometry.(orb.Polygon)
		require.True(t, ok)
		require.Len(t, poly[0], 5)
		assert.Equal(t, orb.Point{16.01, 48.01}, poly[0][2])
		assert.Equal(t, processor.DefaultAOICRS, aoi.SourceCRS())
	}
}

func TestDecodeAOIMultiPolygon(t *testing.T) {
	doc := `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]]]}`
	aoi, err := DecodeAOI([]byte(doc), "EPSG:32633")
	require.NoError(t, err)
	mp, ok := aoi.Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
	assert.Equal(t, "EPSG:32633", aoi.CRS)
}

func TestDecodeAOIRejectsOtherGeometries(t *testing.T) {
	for _, doc := range []string{
		`{"type":"Point","coordinates":[16,48]}`,
		`{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`,
		`{"type":"FeatureCollection","features":[]}`,
		`not json`,
	} {
		_, err := DecodeAOI([]byte(doc), "")
		assert.ErrorIs(t, err, processor.ErrValidation, doc)
	}
}

func TestAOIFeature(t *testing.T) {
	aoi, err := DecodeAOI([]byte(polygonJSON4326), "")
	require.NoError(t, err)

	out, err := AOIFeature(aoi, map[string]interface{}{"item": "S2A_1"})
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "Feature", doc["type"])
	props := doc["properties"].(map[string]interface{})
	assert.Equal(t, "S2A_1", props["item"])
	assert.Equal(t, "EPSG:4326", props["crs"])
}

func TestFootprintFromGeoJSON(t *testing.T) {
	g, err := FootprintFromGeoJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = FootprintFromGeoJSON([]byte(polygonJSON4326))
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{16, 48}, Max: orb.Point{16.01, 48.01}}, g.Bound())
}
