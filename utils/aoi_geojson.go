package utils

import (
	"encoding/json"

	geo "github.com/nci/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/11904212/pcc-demo-api/processor"
)

// DecodeAOI reads an AOI from a GeoJSON Feature, a FeatureCollection
// (its first feature) or a bare geometry. Only Polygon and
// MultiPolygon geometries are accepted.
func DecodeAOI(data []byte, crs string) (processor.AOI, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return processor.AOI{}, errors.Wrapf(processor.ErrValidation, "aoi is not valid json: %v", err)
	}

	var geomJSON []byte
	switch probe.Type {
	case "FeatureCollection":
		var fc geo.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return processor.AOI{}, errors.Wrapf(processor.ErrValidation, "problem unmarshalling feature collection: %v", err)
		}
		if len(fc.Features) == 0 {
			return processor.AOI{}, errors.Wrap(processor.ErrValidation, "feature collection has no feature")
		}
		g, err := polygonJSON(fc.Features[0].Geometry)
		if err != nil {
			return processor.AOI{}, err
		}
		geomJSON = g
	case "Feature":
		var feat geo.Feature
		if err := json.Unmarshal(data, &feat); err != nil {
			return processor.AOI{}, errors.Wrapf(processor.ErrValidation, "problem unmarshalling feature: %v", err)
		}
		g, err := polygonJSON(feat.Geometry)
		if err != nil {
			return processor.AOI{}, err
		}
		geomJSON = g
	case "Polygon", "MultiPolygon":
		geomJSON = data
	default:
		return processor.AOI{}, errors.Wrapf(processor.ErrValidation, "geometry %q not supported, only Polygon or MultiPolygon", probe.Type)
	}

	g, err := geojson.UnmarshalGeometry(geomJSON)
	if err != nil {
		return processor.AOI{}, errors.Wrapf(processor.ErrValidation, "problem unmarshalling geometry: %v", err)
	}
	return processor.AOI{Geometry: g.Geometry(), CRS: crs}, nil
}

func polygonJSON(g geo.Geometry) ([]byte, error) {
	switch g.(type) {
	case *geo.Polygon, *geo.MultiPolygon:
		return json.Marshal(g)
	case nil:
		return nil, errors.Wrap(processor.ErrValidation, "feature has no geometry")
	default:
		return nil, errors.Wrapf(processor.ErrValidation, "geometry %T not supported, only Polygon or MultiPolygon", g)
	}
}

// FootprintFromGeoJSON decodes an item footprint. Any geometry type is
// accepted.
func FootprintFromGeoJSON(data []byte) (orb.Geometry, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, errors.Wrapf(processor.ErrValidation, "footprint: %v", err)
	}
	return g.Geometry(), nil
}

// AOIFeature encodes the AOI geometry as a GeoJSON Feature with the
// given properties.
func AOIFeature(aoi processor.AOI, props map[string]interface{}) ([]byte, error) {
	f := geojson.NewFeature(aoi.Geometry)
	for k, v := range props {
		f.Properties[k] = v
	}
	f.Properties["crs"] = aoi.SourceCRS()
	return json.Marshal(f)
}
