// Package handlers exposes ingestion status over HTTP along with a manual
// run trigger.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/middleware"
	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/repository"
)

// Ingestion is the run entry point shared with the scheduler.
type Ingestion interface {
	Start(ctx context.Context) error
	State() models.IngestionState
}

type Config struct {
	Genres      []string
	MinPerGenre int

	// TriggerInterval is the minimum gap between accepted manual runs.
	TriggerInterval time.Duration
}

type Handler struct {
	ingestion Ingestion
	repo      repository.ContentRepository
	config    Config
	limiter   *rate.Limiter
	logger    *logrus.Entry

	// runCtx outlives requests; manual runs are started on it.
	runCtx context.Context
}

// New builds a handler. A nil ingestion means ingestion is disabled: status
// stays readable and triggers are refused.
func New(runCtx context.Context, ingestion Ingestion, repo repository.ContentRepository, cfg Config, logger *logrus.Entry) *Handler {
	limit := rate.Inf
	if cfg.TriggerInterval > 0 {
		limit = rate.Every(cfg.TriggerInterval)
	}
	if logger == nil {
		logger = logrus.WithField("component", "handlers")
	}
	return &Handler{
		ingestion: ingestion,
		repo:      repo,
		config:    cfg,
		runCtx:    runCtx,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(h.logger))

	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/genres", h.Genres)
		r.Get("/ingestion/status", h.Status)
		r.Post("/ingestion/run", h.TriggerRun)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.NotFound("Router", nil, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &errors.AppError{
			Kind:    errors.KindInvalidInput,
			Code:    http.StatusMethodNotAllowed,
			Message: "method not allowed",
			Op:      "Router",
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Enabled bool `json:"enabled"`
	models.IngestionState
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Enabled: h.ingestion != nil}
	if h.ingestion != nil {
		resp.IngestionState = h.ingestion.State()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type genreStatus struct {
	models.SeedingTarget
	Deficit int `json:"deficit"`
}

func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Genres"

	counts, err := repository.GenreCounts(r.Context(), h.repo, h.config.Genres)
	if err != nil {
		writeError(w, r, errors.StoreUnavailable(op, err, "failed to read genre counts"))
		return
	}

	genres := make([]genreStatus, 0, len(h.config.Genres))
	for _, genre := range h.config.Genres {
		target := models.SeedingTarget{
			Genre:           genre,
			CurrentCount:    counts[genre],
			MinimumRequired: h.config.MinPerGenre,
		}
		genres = append(genres, genreStatus{SeedingTarget: target, Deficit: target.Deficit()})
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"genres": genres})
}

func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.TriggerRun"

	if h.ingestion == nil {
		writeError(w, r, errors.Configuration(op, nil, "ingestion is disabled"))
		return
	}
	if h.ingestion.State().Running {
		writeError(w, r, errors.ErrRunInProgress)
		return
	}
	if !h.limiter.Allow() {
		writeError(w, r, errors.RateLimited(op, nil, "manual runs are rate limited, try again later"))
		return
	}

	if err := h.ingestion.Start(h.runCtx); err != nil {
		writeError(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("Manual ingestion run started")
	writeJSON(w, r, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "ingestion run started",
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.StatusCode(err)
	message := "Internal Server Error"

	var appErr *errors.AppError
	if pkgerrors.As(err, &appErr) {
		message = appErr.Message
	}

	middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"status": code,
		"error":  err.Error(),
	}).Debug("Request error")

	writeJSON(w, r, code, map[string]any{
		"success":    false,
		"error":      message,
		"request_id": middleware.GetRequestID(r.Context()),
	})
}
