package handlers

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/tag-a-log/internal/logger"
	"github.com/benvon/tag-a-log/internal/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	// clients only send control frames
	wsMaxMessageSize = 512
)

// SnapshotMessage is written to a subscriber for every change of its result set
type SnapshotMessage[T any] struct {
	Type    string `json:"type"`
	Data    []T    `json:"data"`
	Message string `json:"message,omitempty"`
}

// Streamer upgrades requests to WebSockets and relays live query snapshots
type Streamer struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamer creates a streamer. allowOrigin decides which browser origins
// may subscribe; nil allows only same-origin and non-browser clients.
func NewStreamer(allowOrigin func(origin string) bool, logger *zap.Logger) *Streamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if allowOrigin != nil {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowOrigin(r.Header.Get("Origin"))
		}
	}
	return &Streamer{upgrader: upgrader, logger: logger}
}

// subscribeFunc starts a live query and returns its unsubscribe function
type subscribeFunc[T any] func(onChange func(items []T, err error)) (func(), error)

// stream subscribes, upgrades the connection and relays snapshots until the
// client goes away. Only the latest pending snapshot is kept when the client
// reads slower than the result set changes.
func stream[T any](s *Streamer, w http.ResponseWriter, r *http.Request, kind string, subscribe subscribeFunc[T]) {
	updates := make(chan SnapshotMessage[T], 1)
	push := func(msg SnapshotMessage[T]) {
		for {
			select {
			case updates <- msg:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}

	unsubscribe, err := subscribe(func(items []T, err error) {
		if err != nil {
			push(SnapshotMessage[T]{Type: "error", Message: "Live updates failed"})
			return
		}
		if items == nil {
			items = []T{}
		}
		push(SnapshotMessage[T]{Type: "snapshot", Data: items})
	})
	if err != nil {
		respondAppError(w, r, s.logger, err)
		return
	}
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		s.logger.Debug("websocket_upgrade_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.ActiveSubscriptions.WithLabelValues(kind).Inc()
	defer metrics.ActiveSubscriptions.WithLabelValues(kind).Dec()
	s.logger.Debug("subscription_opened", zap.String("kind", kind))

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.logger.Debug("subscription_closed", zap.String("kind", kind))
			return
		case msg := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("subscription_write_failed", zap.String("kind", kind), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
