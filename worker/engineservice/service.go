package engineservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "aoiraster.Engine"

// EngineServer is the server API of the aoiraster.Engine service.
// Requests are JSON objects carried in a google.protobuf.Struct.
type EngineServer interface {
	Statistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BatchStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IndexStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsCloudy(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	FilterCloudy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NDVI(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	TrueColor(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

func unaryHandler[R any](method string, call func(EngineServer, context.Context, *structpb.Struct) (R, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Statistics", Handler: unaryHandler("Statistics", EngineServer.Statistics)},
		{MethodName: "BatchStatistics", Handler: unaryHandler("BatchStatistics", EngineServer.BatchStatistics)},
		{MethodName: "IndexStatistics", Handler: unaryHandler("IndexStatistics", EngineServer.IndexStatistics)},
		{MethodName: "IsCloudy", Handler: unaryHandler("IsCloudy", EngineServer.IsCloudy)},
		{MethodName: "FilterCloudy", Handler: unaryHandler("FilterCloudy", EngineServer.FilterCloudy)},
		{MethodName: "NDVI", Handler: unaryHandler("NDVI", EngineServer.NDVI)},
		{MethodName: "TrueColor", Handler: unaryHandler("TrueColor", EngineServer.TrueColor)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aoiraster/engine.proto",
}

func RegisterEngineServer(s grpc.ServiceRegistrar, srv EngineServer) {
	s.RegisterService(&ServiceDesc, srv)
}
