package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/premarket/internal/domain"
	"github.com/opensource-finance/premarket/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		version: version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRuns returns stored run dates, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	dates, err := h.repo.ListRunDates(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list run dates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dates": dates,
		"count": len(dates),
	})
}

// GetLatestRun returns the most recent run's summary.
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	date, err := h.repo.LatestRunDate(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no runs stored",
			})
			return
		}
		slog.Error("failed to resolve latest run", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to resolve latest run",
		})
		return
	}

	run, err := h.loadRun(w, r, date)
	if run == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, run.Summary)
}

// GetRunSummary returns the run summary for a date.
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, err := h.loadRunParam(w, r)
	if run == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, run.Summary)
}

// GetRunTopN returns the ranked top-N artifact for a date.
func (h *Handler) GetRunTopN(w http.ResponseWriter, r *http.Request) {
	run, err := h.loadRunParam(w, r)
	if run == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, run.TopN)
}

// GetRunWatchlist returns the compact watchlist entries for a date.
func (h *Handler) GetRunWatchlist(w http.ResponseWriter, r *http.Request) {
	run, err := h.loadRunParam(w, r)
	if run == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":      run.Date,
		"watchlist": run.Watchlist,
	})
}

// GetRunFull returns the full screened table for a date, rejected rows
// included.
func (h *Handler) GetRunFull(w http.ResponseWriter, r *http.Request) {
	run, err := h.loadRunParam(w, r)
	if run == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":           run.Date,
		"generated_at":   run.GeneratedAt,
		"full_watchlist": run.FullWatchlist,
	})
}

// TriggerRunRequest is the request body for POST /runs.
type TriggerRunRequest struct {
	Date string `json:"date,omitempty"`
	TopN int    `json:"topN,omitempty"`
}

// TriggerRun publishes a run request for the worker to pick up.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req TriggerRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "date must be YYYY-MM-DD",
		})
		return
	}
	if req.TopN < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "topN must not be negative",
		})
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"date": date,
		"topN": req.TopN,
	})
	if err := h.bus.Publish(r.Context(), domain.TopicRunRequested, payload); err != nil {
		slog.Error("failed to publish run request", "date", date, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to request run",
		})
		return
	}

	slog.Info("run requested", "date", date, "top_n", req.TopN)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"date":   date,
		"status": "requested",
	})
}

// loadRunParam loads the run named by the {date} URL parameter.
func (h *Handler) loadRunParam(w http.ResponseWriter, r *http.Request) (*domain.RunArtifacts, error) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "date must be YYYY-MM-DD",
		})
		return nil, err
	}
	return h.loadRun(w, r, date)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request, date string) (*domain.RunArtifacts, error) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return nil, errors.New("repository not available")
	}

	run, err := h.repo.GetRun(r.Context(), date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "run not found",
			})
			return nil, err
		}
		slog.Error("failed to load run", "date", date, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load run",
		})
		return nil, err
	}

	return run, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
