// Package grpcserver adapts OrderService to gRPC. The service is
// registered through a hand-maintained ServiceDesc over the wire codec,
// the same arrangement protoc would generate.
package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"tern/api/wire"
	"tern/domain/book"
	"tern/service"
)

// OrdersServer is the RPC surface of the engine.
type OrdersServer interface {
	Add(context.Context, *wire.AddRequest) (*wire.AddResponse, error)
	Cancel(context.Context, *wire.CancelRequest) (*wire.CancelResponse, error)
	Modify(context.Context, *wire.ModifyRequest) (*wire.AddResponse, error)
	Depth(context.Context, *wire.DepthRequest) (*wire.DepthResponse, error)
}

type Server struct {
	svc *service.OrderService
	log *zap.Logger
}

func NewServer(svc *service.OrderService, log *zap.Logger) *Server {
	return &Server{svc: svc, log: log}
}

// Register attaches the Orders service to a grpc server. The server
// must be built with grpc.ForceServerCodec(wire.Codec{}).
func Register(s *grpc.Server, srv OrdersServer) {
	s.RegisterService(&serviceDesc, srv)
}

// -------------------- handlers --------------------

func (s *Server) Add(ctx context.Context, req *wire.AddRequest) (*wire.AddResponse, error) {
	seq, trades, err := s.svc.Add(req.Id, book.Side(req.Side), book.Type(req.Type), req.Price, req.Qty)
	if err != nil {
		s.log.Warn("add rejected", zap.Uint64("id", req.Id), zap.Error(err))
		return nil, err
	}
	return &wire.AddResponse{Seq: seq, Trades: toWireTrades(trades)}, nil
}

func (s *Server) Cancel(ctx context.Context, req *wire.CancelRequest) (*wire.CancelResponse, error) {
	seq := s.svc.CancelBatch(req.Ids)
	return &wire.CancelResponse{Seq: seq}, nil
}

func (s *Server) Modify(ctx context.Context, req *wire.ModifyRequest) (*wire.AddResponse, error) {
	seq, trades, err := s.svc.Modify(req.Id, book.Change{
		Side:      book.Side(req.Side),
		Price:     req.Price,
		Remainder: req.Qty,
	})
	if err != nil {
		s.log.Warn("modify rejected", zap.Uint64("id", req.Id), zap.Error(err))
		return nil, err
	}
	return &wire.AddResponse{Seq: seq, Trades: toWireTrades(trades)}, nil
}

func (s *Server) Depth(ctx context.Context, req *wire.DepthRequest) (*wire.DepthResponse, error) {
	bids, asks := s.svc.Depth(int(req.Limit))
	return &wire.DepthResponse{
		Bids: toWireLevels(bids),
		Asks: toWireLevels(asks),
	}, nil
}

// -------------------- converters --------------------

func toWireTrades(trades []book.Trade) []*wire.Trade {
	out := make([]*wire.Trade, 0, len(trades))
	for _, tr := range trades {
		out = append(out, &wire.Trade{
			BidId:    tr.Bid.OrderID,
			AskId:    tr.Ask.OrderID,
			BidPrice: tr.Bid.Price,
			AskPrice: tr.Ask.Price,
			Qty:      tr.Bid.Quantity,
		})
	}
	return out
}

func toWireLevels(levels []book.LevelInfo) []*wire.Level {
	out := make([]*wire.Level, 0, len(levels))
	for _, lv := range levels {
		out = append(out, &wire.Level{
			Price: lv.Price,
			Count: uint32(lv.Count),
			Qty:   lv.Quantity,
		})
	}
	return out
}

// -------------------- service descriptor --------------------

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "tern.Orders",
	HandlerType: (*OrdersServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Add", Handler: addHandler},
		{MethodName: "Cancel", Handler: cancelHandler},
		{MethodName: "Modify", Handler: modifyHandler},
		{MethodName: "Depth", Handler: depthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/wire",
}

func addHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.AddRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).Add(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tern.Orders/Add"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).Add(ctx, req.(*wire.AddRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tern.Orders/Cancel"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).Cancel(ctx, req.(*wire.CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func modifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.ModifyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).Modify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tern.Orders/Modify"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).Modify(ctx, req.(*wire.ModifyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func depthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.DepthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).Depth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tern.Orders/Depth"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).Depth(ctx, req.(*wire.DepthRequest))
	}
	return interceptor(ctx, in, info, handler)
}
