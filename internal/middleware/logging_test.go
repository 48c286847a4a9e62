package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		withIdentity  bool
	}{
		{name: "GET request", method: "GET", path: "/healthz", handlerStatus: http.StatusOK},
		{name: "POST request", method: "POST", path: "/api/v1/logs", handlerStatus: http.StatusCreated, withIdentity: true},
		{name: "404 request", method: "GET", path: "/notfound", handlerStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			var id *models.Identity
			if tt.withIdentity {
				id = &models.Identity{ID: uuid.New(), Email: "a@example.com"}
				req = req.WithContext(SignedInContext(context.Background(), id))
			}
			w := httptest.NewRecorder()

			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			if w.Code != tt.handlerStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.handlerStatus)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("got %d http_request entries, want 1", len(entries))
			}
			fields := entries[0].ContextMap()
			if got := fields["status_code"]; got != int64(tt.handlerStatus) {
				t.Errorf("status_code = %v, want %d", got, tt.handlerStatus)
			}
			if got := fields["path"]; got != tt.path {
				t.Errorf("path = %v, want %s", got, tt.path)
			}
			_, hasOwner := fields["owner_id"]
			if hasOwner != tt.withIdentity {
				t.Errorf("owner_id present = %v, want %v", hasOwner, tt.withIdentity)
			}
			if tt.withIdentity && fields["owner_id"] != id.OwnerID() {
				t.Errorf("owner_id = %v, want %s", fields["owner_id"], id.OwnerID())
			}
		})
	}
}

func TestLoggingResponseWriter_FirstStatusWins(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	_, _ = rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusTeapot)

	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusOK)
	}
	if newResponseWriter(rw) != rw {
		t.Error("newResponseWriter should not double wrap")
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	conn net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.conn, bufio.NewReadWriter(bufio.NewReader(h.conn), bufio.NewWriter(h.conn)), nil
}

func TestLoggingResponseWriter_Hijack(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	rw := newResponseWriter(&hijackableRecorder{ResponseRecorder: httptest.NewRecorder(), conn: server})
	conn, _, err := rw.Hijack()
	if err != nil {
		t.Fatalf("Hijack() error = %v", err)
	}
	if conn != server {
		t.Error("Hijack() returned a different connection")
	}
	if !rw.hijacked || rw.statusCode != http.StatusSwitchingProtocols {
		t.Errorf("hijacked = %v status = %d", rw.hijacked, rw.statusCode)
	}

	plain := newResponseWriter(httptest.NewRecorder())
	if _, _, err := plain.Hijack(); err == nil {
		t.Error("Hijack() on a non-hijacker should fail")
	}
}
