package engineservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/11904212/pcc-demo-api/processor"
	"github.com/11904212/pcc-demo-api/utils"
)

// Client calls a remote aoiraster.Engine. Failed calls carry the
// processor error kind reported by the server, so errors.Is works
// across the wire.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, msg requestMsg, out proto.Message) error {
	in, err := encodeRequest(msg)
	if err != nil {
		return err
	}
	var trailer metadata.MD
	err = c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.Trailer(&trailer))
	return clientError(err, trailer)
}

func singleRequest(item processor.Item, aoi processor.AOI) (requestMsg, error) {
	m, err := utils.NewItemDocument(item)
	if err != nil {
		return requestMsg{}, err
	}
	a, err := aoiJSON(aoi)
	if err != nil {
		return requestMsg{}, err
	}
	return requestMsg{Item: &m, AOI: a, CRS: aoi.CRS}, nil
}

func batchRequest(items []processor.Item, aoi processor.AOI) (requestMsg, error) {
	a, err := aoiJSON(aoi)
	if err != nil {
		return requestMsg{}, err
	}
	msg := requestMsg{AOI: a, CRS: aoi.CRS, Items: make([]utils.ItemDocument, 0, len(items))}
	for _, item := range items {
		m, err := utils.NewItemDocument(item)
		if err != nil {
			return requestMsg{}, err
		}
		msg.Items = append(msg.Items, m)
	}
	return msg, nil
}

func (c *Client) Statistics(ctx context.Context, item processor.Item, aoi processor.AOI) (processor.NdviStats, error) {
	msg, err := singleRequest(item, aoi)
	if err != nil {
		return processor.NdviStats{}, err
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "Statistics", msg, out); err != nil {
		return processor.NdviStats{}, err
	}
	var st processor.NdviStats
	err = fromStruct(out, &st)
	return st, err
}

func (c *Client) BatchStatistics(ctx context.Context, items []processor.Item, aoi processor.AOI) ([]processor.NdviStats, error) {
	msg, err := batchRequest(items, aoi)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "BatchStatistics", msg, out); err != nil {
		return nil, err
	}
	var reply statsReply
	err = fromStruct(out, &reply)
	return reply.Stats, err
}

func (c *Client) IndexStatistics(ctx context.Context, item processor.Item, aoi processor.AOI, index string) (processor.Stats, error) {
	msg, err := singleRequest(item, aoi)
	if err != nil {
		return processor.Stats{}, err
	}
	msg.Index = index
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "IndexStatistics", msg, out); err != nil {
		return processor.Stats{}, err
	}
	var st processor.Stats
	err = fromStruct(out, &st)
	return st, err
}

func (c *Client) IsCloudy(ctx context.Context, item processor.Item, aoi processor.AOI) (bool, error) {
	msg, err := singleRequest(item, aoi)
	if err != nil {
		return false, err
	}
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "IsCloudy", msg, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// FilterCloudy returns the IDs of the clear items.
func (c *Client) FilterCloudy(ctx context.Context, items []processor.Item, aoi processor.AOI) ([]string, error) {
	msg, err := batchRequest(items, aoi)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "FilterCloudy", msg, out); err != nil {
		return nil, err
	}
	var reply itemsReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	ids := make([]string, len(reply.Items))
	for i, m := range reply.Items {
		ids[i] = m.ID
	}
	return ids, nil
}

// NDVI returns the NDVI raster of the item over the AOI encoded as
// format, FormatGeoTIFF or FormatPNG.
func (c *Client) NDVI(ctx context.Context, item processor.Item, aoi processor.AOI, format string) ([]byte, error) {
	return c.image(ctx, "NDVI", item, aoi, format)
}

func (c *Client) TrueColor(ctx context.Context, item processor.Item, aoi processor.AOI, format string) ([]byte, error) {
	return c.image(ctx, "TrueColor", item, aoi, format)
}

func (c *Client) image(ctx context.Context, method string, item processor.Item, aoi processor.AOI, format string) ([]byte, error) {
	msg, err := singleRequest(item, aoi)
	if err != nil {
		return nil, err
	}
	msg.Format = format
	out := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, method, msg, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}
