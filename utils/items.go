package utils

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/11904212/pcc-demo-api/processor"
)

// ItemDocument is the JSON form of an item: a STAC item feature with
// id, collection and assets, and its footprint as the GeoJSON geometry.
// Documents written before the geometry key was read may carry the
// footprint under "footprint" instead.
type ItemDocument struct {
	Type       string                     `json:"type,omitempty"`
	ID         string                     `json:"id"`
	Collection string                     `json:"collection,omitempty"`
	Assets     map[string]processor.Asset `json:"assets"`
	Geometry   json.RawMessage            `json:"geometry,omitempty"`
	Footprint  json.RawMessage            `json:"footprint,omitempty"`
}

func (d ItemDocument) Item() (processor.Item, error) {
	if d.ID == "" {
		return processor.Item{}, errors.Wrap(processor.ErrValidation, "item without id")
	}
	raw := d.Geometry
	if len(raw) == 0 || string(raw) == "null" {
		raw = d.Footprint
	}
	fp, err := FootprintFromGeoJSON(raw)
	if err != nil {
		return processor.Item{}, errors.Wrapf(err, "item %s", d.ID)
	}
	return processor.Item{ID: d.ID, Collection: d.Collection, Assets: d.Assets, Footprint: fp}, nil
}

func NewItemDocument(item processor.Item) (ItemDocument, error) {
	d := ItemDocument{Type: "Feature", ID: item.ID, Collection: item.Collection, Assets: item.Assets}
	if item.Footprint != nil {
		fp, err := json.Marshal(geojson.NewGeometry(item.Footprint))
		if err != nil {
			return ItemDocument{}, errors.Wrapf(err, "item %s footprint", item.ID)
		}
		d.Geometry = fp
	}
	return d, nil
}

// DecodeItems reads a JSON array of item documents.
func DecodeItems(data []byte) ([]processor.Item, error) {
	var docs []ItemDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrapf(processor.ErrValidation, "items: %v", err)
	}
	items := make([]processor.Item, 0, len(docs))
	for _, d := range docs {
		item, err := d.Item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
