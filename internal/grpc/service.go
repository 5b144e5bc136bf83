package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "marketdash.v1.MarketData"

	getQuotesMethod   = "/" + ServiceName + "/GetQuotes"
	getIndexMethod    = "/" + ServiceName + "/GetIndex"
	watchQuotesMethod = "/" + ServiceName + "/WatchQuotes"
)

// MarketDataServer is the server API for marketdash.v1.MarketData. Requests
// and responses are google.protobuf.Struct documents carrying the same JSON
// shapes as the HTTP API.
type MarketDataServer interface {
	GetQuotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetIndex(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchQuotes(req *structpb.Struct, stream grpc.ServerStream) error
}

func RegisterMarketDataServer(s grpc.ServiceRegistrar, srv MarketDataServer) {
	s.RegisterService(&MarketDataServiceDesc, srv)
}

var MarketDataServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketDataServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQuotes", Handler: getQuotesHandler},
		{MethodName: "GetIndex", Handler: getIndexHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchQuotes", Handler: watchQuotesHandler, ServerStreams: true},
	},
	Metadata: "marketdash/v1/market_data.proto",
}

func getQuotesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).GetQuotes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getQuotesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MarketDataServer).GetQuotes(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getIndexHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).GetIndex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getIndexMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MarketDataServer).GetIndex(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchQuotesHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MarketDataServer).WatchQuotes(in, stream)
}
