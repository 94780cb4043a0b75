package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// handleStream pushes a snapshot on connect and after every state change.
// The client only listens; intents go through the JSON routes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	changes, unsubscribe := s.app.Subscribe()
	defer unsubscribe()

	if s.metrics != nil {
		s.metrics.Subscribers.Inc()
		defer s.metrics.Subscribers.Dec()
	}

	requestID := w.Header().Get(RequestIDHeader)
	s.logger.Info("snapshot subscriber connected", "request_id", requestID)

	// Reads are discarded; the returned context ends when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	if err := s.pushSnapshot(ctx, conn); err != nil {
		s.logStreamEnd(requestID, err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			s.logStreamEnd(requestID, ctx.Err())
			return
		case <-changes:
			if err := s.pushSnapshot(ctx, conn); err != nil {
				s.logStreamEnd(requestID, err)
				return
			}
		}
	}
}

func (s *Server) pushSnapshot(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, s.app.Snapshot())
}

func (s *Server) logStreamEnd(requestID string, err error) {
	if err == nil || errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
		s.logger.Info("snapshot subscriber disconnected", "request_id", requestID)
		return
	}
	s.logger.Warn("snapshot stream ended", "request_id", requestID, "error", err)
}
