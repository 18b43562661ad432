package engineservice

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/11904212/pcc-demo-api/processor"
	"github.com/11904212/pcc-demo-api/utils"
)

const (
	FormatGeoTIFF = "geotiff"
	FormatPNG     = "png"
)

// requestMsg is the JSON document every method receives. Single item
// methods read Item, batch methods read Items.
type requestMsg struct {
	Item   *utils.ItemDocument  `json:"item,omitempty"`
	Items  []utils.ItemDocument `json:"items,omitempty"`
	AOI    json.RawMessage      `json:"aoi"`
	CRS    string               `json:"crs,omitempty"`
	Index  string               `json:"index,omitempty"`
	Format string               `json:"format,omitempty"`
}

// request is a decoded requestMsg.
type request struct {
	items  []processor.Item
	aoi    processor.AOI
	index  string
	format string
}

func decodeRequest(in *structpb.Struct, batch bool) (*request, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, errors.Wrapf(processor.ErrValidation, "request: %v", err)
	}
	var msg requestMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrapf(processor.ErrValidation, "request: %v", err)
	}

	if len(msg.AOI) == 0 {
		return nil, errors.Wrap(processor.ErrValidation, "request has no aoi")
	}
	aoi, err := utils.DecodeAOI(msg.AOI, msg.CRS)
	if err != nil {
		return nil, err
	}

	req := &request{aoi: aoi, index: msg.Index, format: strings.ToLower(msg.Format)}
	switch req.format {
	case "":
		req.format = FormatGeoTIFF
	case FormatGeoTIFF, FormatPNG:
	default:
		return nil, errors.Wrapf(processor.ErrValidation, "unknown format %q", msg.Format)
	}

	msgs := msg.Items
	if !batch {
		if msg.Item == nil {
			return nil, errors.Wrap(processor.ErrValidation, "request has no item")
		}
		msgs = []utils.ItemDocument{*msg.Item}
	}
	for _, m := range msgs {
		item, err := m.Item()
		if err != nil {
			return nil, err
		}
		req.items = append(req.items, item)
	}
	return req, nil
}

// encodeRequest builds the wire request of a client call.
func encodeRequest(msg requestMsg) (*structpb.Struct, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func aoiJSON(aoi processor.AOI) (json.RawMessage, error) {
	return utils.AOIFeature(aoi, nil)
}

// toStruct converts any JSON encodable value to a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStruct decodes a Struct into v through JSON.
func fromStruct(in *structpb.Struct, v interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type statsReply struct {
	Stats []processor.NdviStats `json:"stats"`
}

type itemsReply struct {
	Items []utils.ItemDocument `json:"items"`
}
