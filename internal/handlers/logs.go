package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
	"github.com/benvon/tag-a-log/internal/services/export"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Exporter renders an owner's logs as text. *export.Exporter implements it.
type Exporter interface {
	Export(ctx context.Context, ownerID string) (string, error)
}

// LogHandler handles log-related requests
type LogHandler struct {
	logs     database.LogRepositoryInterface
	exporter Exporter
	streamer *Streamer
	logger   *zap.Logger
}

// NewLogHandler creates a new log handler. Live subscriptions are disabled
// when streamer is nil.
func NewLogHandler(logs database.LogRepositoryInterface, exporter Exporter, streamer *Streamer, logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{logs: logs, exporter: exporter, streamer: streamer, logger: logger}
}

// RegisterRoutes registers log routes on a router with the /logs prefix
func (h *LogHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListLogs).Methods("GET")
	r.HandleFunc("", h.CreateLog).Methods("POST")
	r.HandleFunc("/export", h.ExportLogs).Methods("GET")
	if h.streamer != nil {
		r.HandleFunc("/subscribe", h.SubscribeLogs).Methods("GET")
	}
	r.HandleFunc("/{id}", h.GetLog).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateLog).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteLog).Methods("DELETE")
}

// filterFromQuery reads ?tag=a&tag=b&q=text
func filterFromQuery(r *http.Request) models.LogFilter {
	query := r.URL.Query()
	var tagIDs []string
	for _, id := range query["tag"] {
		if id = strings.TrimSpace(id); id != "" {
			tagIDs = append(tagIDs, id)
		}
	}
	return models.LogFilter{TagIDs: models.UniqueTagIDs(tagIDs), Search: query.Get("q")}
}

// ListLogs lists the owner's logs, newest first, narrowed by the query filter
func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	logs, err := h.logs.List(r.Context(), ownerID, filterFromQuery(r))
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*models.Log{}
	}
	respondJSON(w, http.StatusOK, logs)
}

// CreateLog creates a log
func (h *LogHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	var input models.LogInput
	if err := decodeJSON(r, &input); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	log, err := h.logs.Create(r.Context(), ownerID, input)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, log)
}

// GetLog returns one log
func (h *LogHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	log, err := h.logs.Get(r.Context(), ownerID, mux.Vars(r)["id"])
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, log)
}

// UpdateLog replaces a log's title, content and tags
func (h *LogHandler) UpdateLog(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	logID := mux.Vars(r)["id"]
	var input models.LogInput
	if err := decodeJSON(r, &input); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	if err := h.logs.Update(ctx, ownerID, logID, input); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	log, err := h.logs.Get(ctx, ownerID, logID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, log)
}

// DeleteLog deletes a log
func (h *LogHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	if err := h.logs.Delete(r.Context(), ownerID, mux.Vars(r)["id"]); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportLogs downloads every log as a text file
func (h *LogHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	body, err := h.exporter.Export(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Warn("export_write_failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// SubscribeLogs streams the owner's logs over a WebSocket. The query filter
// applies to every snapshot.
func (h *LogHandler) SubscribeLogs(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	filter := filterFromQuery(r)
	stream(h.streamer, w, r, "logs", func(onChange func([]*models.Log, error)) (func(), error) {
		return h.logs.Subscribe(ownerID, func(logs []*models.Log, err error) {
			if err != nil {
				onChange(nil, err)
				return
			}
			matched := make([]*models.Log, 0, len(logs))
			for _, l := range logs {
				if filter.Matches(l) {
					matched = append(matched, l)
				}
			}
			onChange(matched, nil)
		})
	})
}
