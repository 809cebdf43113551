package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/moeckpt/internal/checkpoint"
	"github.com/yndnr/moeckpt/internal/storage/snapshot"
	"github.com/yndnr/moeckpt/internal/telemetry/logger"
)

// Checkpointer is the part of checkpoint.Store the admin API uses.
type Checkpointer interface {
	Components() []string
	SaveAll(ctx context.Context) (*checkpoint.SaveReport, error)
	Save(ctx context.Context, name string) (*snapshot.Handle, error)
	Latest(name string) (*snapshot.Handle, error)
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Store Checkpointer

	// Metrics serves GET /metrics. Nil leaves the route out.
	Metrics http.Handler

	// Ready reports whether the server is ready. Nil means always ready.
	Ready func() bool

	Logger *slog.Logger
}

// NewRouter builds the admin handler.
func NewRouter(cfg *RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handler{store: cfg.Store, ready: cfg.Ready}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)
	mux.HandleFunc("GET /checkpoints", h.handleList)
	mux.HandleFunc("POST /checkpoint", h.handleSaveAll)
	mux.HandleFunc("POST /checkpoint/{component}", h.handleSaveOne)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return Chain(mux, RequestID(cfg.Logger), Recover(), AccessLog())
}

type handler struct {
	store Checkpointer
	ready func() bool
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, CodeOK, "healthy", nil)
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSON(w, r, http.StatusServiceUnavailable, CodeNotReady, "not ready", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, CodeOK, "ready", nil)
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	components := h.store.Components()
	out := make([]CheckpointInfo, 0, len(components))
	for _, name := range components {
		info := CheckpointInfo{Component: name}
		latest, err := h.store.Latest(name)
		switch {
		case err != nil:
			info.Error = err.Error()
		case latest != nil:
			created := latest.CreatedAt
			info.Latest = latest.Name
			info.CreatedAt = &created
			info.Size = latest.Size
		}
		out = append(out, info)
	}
	writeJSON(w, r, http.StatusOK, CodeOK, "Success", out)
}

func (h *handler) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.SaveAll(r.Context())
	result := SaveResult{
		CycleID:    report.CycleID,
		DurationMS: report.Duration.Milliseconds(),
		Saved:      make(map[string]string, len(report.Saved)),
	}
	for name, hd := range report.Saved {
		result.Saved[name] = hd.Name
	}
	if err == nil {
		writeJSON(w, r, http.StatusOK, CodeOK, "Success", result)
		return
	}

	result.Failed = make(map[string]string, len(report.Errors))
	for name, e := range report.Errors {
		result.Failed[name] = e.Error()
	}
	logger.FromContext(r.Context()).Warn("manual checkpoint partially failed", "failed", report.Failed())
	status, code := http.StatusMultiStatus, CodePartial
	if len(report.Saved) == 0 {
		status, code = http.StatusInternalServerError, CodeSaveFailed
	}
	writeJSON(w, r, status, code, err.Error(), result)
}

func (h *handler) handleSaveOne(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("component")
	start := time.Now()
	hd, err := h.store.Save(r.Context(), name)
	switch {
	case errors.Is(err, checkpoint.ErrUnknownComponent):
		writeJSON(w, r, http.StatusNotFound, CodeUnknownComponent, err.Error(), nil)
	case err != nil:
		writeJSON(w, r, http.StatusInternalServerError, CodeSaveFailed, err.Error(), SaveResult{
			DurationMS: time.Since(start).Milliseconds(),
			Failed:     map[string]string{name: err.Error()},
		})
	default:
		writeJSON(w, r, http.StatusOK, CodeOK, "Success", SaveResult{
			DurationMS: time.Since(start).Milliseconds(),
			Saved:      map[string]string{name: hd.Name},
		})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, code, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := newResponse(w.Header().Get("X-Request-ID"), code, message, data)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
