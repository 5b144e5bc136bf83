package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marketdash/internal/pubsub"
)

// Stream receives quote snapshots pushed by the server's /api/stream
// websocket, as an alternative to polling.
type Stream struct {
	url       string
	token     string
	snapshots chan *pubsub.Snapshot
	stopChan  chan struct{}
	running   bool
	mu        sync.Mutex
	conn      *websocket.Conn
	logger    *zap.Logger
}

// NewStream prepares a stream for the given symbols. No symbols means all of
// them.
func NewStream(baseURL, token string, logger *zap.Logger, symbols ...string) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:       streamURL(baseURL, symbols),
		token:     token,
		snapshots: make(chan *pubsub.Snapshot, 16),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

func streamURL(baseURL string, symbols []string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	u += "/api/stream"
	if len(symbols) > 0 {
		u += "?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	}
	return u
}

// Start dials the server. The snapshot channel is closed when the connection
// ends for any reason.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect to %s: status %d: %w", s.url, resp.StatusCode, err)
		}
		return fmt.Errorf("connect to %s: %w", s.url, err)
	}

	s.conn = conn
	s.running = true
	s.logger.Info("Stream connected", zap.String("url", s.url))

	go s.readMessages(ctx)
	return nil
}

func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stopChan)

	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
}

func (s *Stream) Snapshots() <-chan *pubsub.Snapshot {
	return s.snapshots
}

func (s *Stream) readMessages(ctx context.Context) {
	defer close(s.snapshots)
	defer s.conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	for {
		var snap pubsub.Snapshot
		if err := s.conn.ReadJSON(&snap); err != nil {
			select {
			case <-s.stopChan:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("Stream read failed", zap.Error(err))
				}
			}
			return
		}

		select {
		case s.snapshots <- &snap:
		case <-s.stopChan:
			return
		}
	}
}
