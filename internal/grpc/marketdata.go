package grpc

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"marketdash/internal/cache"
	"marketdash/internal/pubsub"
)

const watchBufferSize = 16

type MarketDataService struct {
	market *cache.Market
	broker *pubsub.Broker
	logger *zap.Logger
}

func NewMarketDataService(market *cache.Market, broker *pubsub.Broker, logger *zap.Logger) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{
		market: market,
		broker: broker,
		logger: logger,
	}
}

// GetQuotes returns {"quotes": [...], "updatedAt": ...}, optionally narrowed
// by a "symbols" list in the request.
func (s *MarketDataService) GetQuotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	quotes, at := s.market.Quotes()
	snap := pubsub.Snapshot{Quotes: filterQuotes(quotes, symbolsField(req)), UpdatedAt: at}

	out, err := toStruct(snap)
	if err != nil {
		s.logger.Error("Encode quotes failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode quotes")
	}
	return out, nil
}

// GetIndex returns one index series. The request's "index" field is "nifty"
// or "sensex".
func (s *MarketDataService) GetIndex(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := strings.ToLower(strings.TrimSpace(req.GetFields()["index"].GetStringValue()))

	pair, _ := s.market.Index()
	var series any
	switch name {
	case "nifty", "nifty50":
		series = pair.Nifty
	case "sensex":
		series = pair.Sensex
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown index %q", name)
	}

	out, err := toStruct(series)
	if err != nil {
		s.logger.Error("Encode index failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode index")
	}
	return out, nil
}

// WatchQuotes sends the current snapshot and then every regenerated one until
// the client goes away.
func (s *MarketDataService) WatchQuotes(req *structpb.Struct, stream grpc.ServerStream) error {
	if s.broker == nil {
		return status.Error(codes.Unimplemented, "streaming is disabled")
	}

	symbols := symbolsField(req)
	subscriberID := generateSubscriberID()

	s.logger.Info("Client subscribing to quote stream",
		zap.Strings("symbols", symbols),
		zap.String("subscriber_id", subscriberID))

	subscriber := s.broker.Subscribe(subscriberID, symbols, watchBufferSize)
	defer s.broker.Unsubscribe(subscriberID)

	quotes, at := s.market.Quotes()
	if err := s.send(stream, subscriber.Filter(&pubsub.Snapshot{Quotes: quotes, UpdatedAt: at})); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			s.logger.Info("Client disconnected from quote stream", zap.String("subscriber_id", subscriberID))
			return stream.Context().Err()
		case snap, ok := <-subscriber.SnapshotChan:
			if !ok {
				return nil
			}
			if !snap.UpdatedAt.After(at) {
				continue
			}
			at = snap.UpdatedAt
			if err := s.send(stream, snap); err != nil {
				s.logger.Warn("Error sending quotes to client",
					zap.String("subscriber_id", subscriberID),
					zap.Error(err))
				return err
			}
		}
	}
}

func (s *MarketDataService) send(stream grpc.ServerStream, snap *pubsub.Snapshot) error {
	msg, err := toStruct(snap)
	if err != nil {
		return status.Error(codes.Internal, "failed to encode quotes")
	}
	return stream.SendMsg(msg)
}
