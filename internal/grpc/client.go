package grpc

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"marketdash/internal/pubsub"
	"marketdash/pkg/models"
)

// Client calls the MarketData service with a bearer token attached to every
// request.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

func Dial(target, token string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn, token: token}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func symbolsRequest(symbols []string) (*structpb.Struct, error) {
	values := make([]any, 0, len(symbols))
	for _, s := range symbols {
		values = append(values, s)
	}
	return structpb.NewStruct(map[string]any{"symbols": values})
}

func (c *Client) Quotes(ctx context.Context, symbols ...string) (pubsub.Snapshot, error) {
	var snap pubsub.Snapshot

	req, err := symbolsRequest(symbols)
	if err != nil {
		return snap, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), getQuotesMethod, req, resp); err != nil {
		return snap, err
	}
	err = fromStruct(resp, &snap)
	return snap, err
}

func (c *Client) Index(ctx context.Context, name string) (models.IndexSeries, error) {
	var series models.IndexSeries

	req, err := structpb.NewStruct(map[string]any{"index": name})
	if err != nil {
		return series, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), getIndexMethod, req, resp); err != nil {
		return series, err
	}
	err = fromStruct(resp, &series)
	return series, err
}

// Watch streams snapshots into fn until ctx is cancelled, the server closes
// the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, symbols []string, fn func(pubsub.Snapshot) error) error {
	req, err := symbolsRequest(symbols)
	if err != nil {
		return err
	}

	desc := &MarketDataServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(c.outgoing(ctx), desc, watchQuotesMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		var snap pubsub.Snapshot
		if err := fromStruct(msg, &snap); err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}
