package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marketdash/internal/pubsub"
)

const (
	streamBufferSize = 16
	pingInterval     = 45 * time.Second
	readDeadline     = 90 * time.Second
	writeDeadline    = 10 * time.Second
)

// handleStream upgrades to a websocket and pushes every regenerated quote
// snapshot. An optional "symbols" query parameter (comma separated) narrows
// the quotes sent.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.cfg.AllowedOrigin || strings.HasSuffix(origin, "://"+r.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, sym := range strings.Split(raw, ",") {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	}

	id := uuid.NewString()
	sub := s.state.Broker.Subscribe(id, symbols, streamBufferSize)
	defer s.state.Broker.Unsubscribe(id)

	email := ""
	if claims, ok := ClaimsFrom(r.Context()); ok {
		email = claims.Email
	}
	s.logger.Info("Stream subscriber connected", zap.String("subscriber_id", id), zap.String("email", email))

	// The first snapshot comes from the cache itself so a new subscriber never
	// waits a full TTL.
	quotes, at := s.state.Market.Quotes()
	first := sub.Filter(&pubsub.Snapshot{Quotes: quotes, UpdatedAt: at})
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(first); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readDeadline))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			s.logger.Info("Stream subscriber disconnected", zap.String("subscriber_id", id))
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-sub.SnapshotChan:
			if !ok {
				return
			}
			if !snap.UpdatedAt.After(at) {
				continue
			}
			at = snap.UpdatedAt
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(snap); err != nil {
				s.logger.Debug("Stream write failed", zap.Error(err), zap.String("subscriber_id", id))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
