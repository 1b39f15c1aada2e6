package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/edgedesk/scanforge/internal/engine"
	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/services"
	"github.com/edgedesk/scanforge/internal/utils"
)

// Handler carries the HTTP handlers for the scanner authoring API.
type Handler struct {
	logger  *slog.Logger
	service *services.ScannerService
	advice  *engine.AdviceEngine
}

// NewHandler constructs the handler set.
func NewHandler(logger *slog.Logger, service *services.ScannerService, advice *engine.AdviceEngine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, advice: advice}
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

type detectRequest struct {
	Text string `json:"text"`
}

type scanResponse struct {
	models.ScanJob
	Suggestions []string `json:"suggestions,omitempty"`
}

// Router builds the chi router with middleware and all routes mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scanners", func(r chi.Router) {
			r.Get("/", h.listPatterns)
			r.Post("/detect", h.detect)
			r.Post("/format", h.format)
		})
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", h.startScan)
			r.Get("/", h.listScans)
			r.Get("/{id}", h.getScan)
			r.Post("/{id}/cancel", h.cancelScan)
		})
		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", h.listParameters)
			r.Post("/", h.upsertParameter)
			r.Delete("/{id}", h.deleteParameter)
		})
		r.Route("/columns", func(r chi.Router) {
			r.Get("/", h.listColumns)
			r.Post("/", h.upsertColumn)
			r.Delete("/{id}", h.deleteColumn)
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.listSessions)
			r.Get("/{id}", h.getSession)
			r.Delete("/{id}", h.deleteSession)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:    "ok",
		Service:   "scanforge",
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) listPatterns(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Patterns())
}

func (h *Handler) detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := h.service.Detect(req.Text)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *Handler) format(w http.ResponseWriter, r *http.Request) {
	var req models.FormatRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := h.service.Format(r.Context(), req)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *Handler) startScan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	session, err := h.service.StartScan(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrBackendUnavailable) {
			status = http.StatusBadGateway
		}
		h.writeError(w, r, status, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, session)
}

func (h *Handler) listScans(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.ListScans())
}

func (h *Handler) getScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.service.GetScan(id)
	if !ok {
		h.notFound(w, r, "scan not found")
		return
	}
	resp := scanResponse{ScanJob: job}
	if job.State == models.ScanFailed {
		message := job.Error
		if message == "" {
			message = job.Message
		}
		resp.Suggestions = h.advice.Advise(job.State, message)
	}
	render.JSON(w, r, resp)
}

func (h *Handler) cancelScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.CancelScan(r.Context(), id); err != nil {
		h.writeError(w, r, http.StatusNotFound, err)
		return
	}
	job, _ := h.service.GetScan(id)
	render.JSON(w, r, scanResponse{ScanJob: job})
}

func (h *Handler) listParameters(w http.ResponseWriter, r *http.Request) {
	scannerType := r.URL.Query().Get("scanner_type")
	render.JSON(w, r, h.service.Parameters().List(scannerType))
}

func (h *Handler) upsertParameter(w http.ResponseWriter, r *http.Request) {
	var def models.ParameterDefinition
	if err := render.DecodeJSON(r.Body, &def); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.service.Parameters().Upsert(def); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	stored, _ := h.service.Parameters().Get(def.ID)
	render.JSON(w, r, stored)
}

func (h *Handler) deleteParameter(w http.ResponseWriter, r *http.Request) {
	if !h.service.Parameters().Delete(chi.URLParam(r, "id")) {
		h.notFound(w, r, "parameter not found")
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) listColumns(w http.ResponseWriter, r *http.Request) {
	scannerType := r.URL.Query().Get("scanner_type")
	render.JSON(w, r, h.service.Columns().List(scannerType))
}

func (h *Handler) upsertColumn(w http.ResponseWriter, r *http.Request) {
	var def models.ColumnDefinition
	if err := render.DecodeJSON(r.Body, &def); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.service.Columns().Upsert(def); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	stored, _ := h.service.Columns().Get(def.ID)
	render.JSON(w, r, stored)
}

func (h *Handler) deleteColumn(w http.ResponseWriter, r *http.Request) {
	if !h.service.Columns().Delete(chi.URLParam(r, "id")) {
		h.notFound(w, r, "column not found")
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Sessions().List())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.service.Sessions().Get(chi.URLParam(r, "id"))
	if !ok {
		h.notFound(w, r, "session not found")
		return
	}
	render.JSON(w, r, session)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.service.Sessions().Delete(chi.URLParam(r, "id")) {
		h.notFound(w, r, "session not found")
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := utils.UserMessage(err)
	h.logger.Warn("request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err))
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:       msg,
		Suggestions: h.advice.Advise(models.ScanFailed, msg),
	})
}
