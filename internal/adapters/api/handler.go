package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
	"connection-pro/internal/usecase/analytics"
	"connection-pro/internal/usecase/automation"
	"connection-pro/internal/usecase/templates"
)

// Controller — операции автоматизации, доступные по HTTP.
type Controller interface {
	Start(ctx context.Context, params domain.RunParams) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	ConnectionSent(ctx context.Context, profile *domain.ProfileData) error
	ConnectionFailed(ctx context.Context, reason string, profile *domain.ProfileData) error
	HeartbeatResponse(ctx context.Context)
	Status() domain.Status
}

// Analytics — чтение статистики.
type Analytics interface {
	Query(rangeFilter string) (domain.Analytics, error)
	ExportCSV() (string, error)
}

// Templates — управление шаблонами заметок.
type Templates interface {
	All() domain.TemplateSet
	Save(id, body string) error
	ReplaceAll(all domain.TemplateSet) error
	Delete(id string) error
}

// Settings — пользовательские настройки.
type Settings interface {
	Current() domain.Settings
	Update(patch domain.SettingsPatch) domain.Settings
}

// Handler обслуживает /api/v1.
type Handler struct {
	ctrl      Controller
	analytics Analytics
	templates Templates
	settings  Settings
	events    http.HandlerFunc
	log       zerolog.Logger
}

// NewHandler собирает обработчики. events — поток SSE, может быть nil.
func NewHandler(ctrl Controller, a Analytics, t Templates, s Settings, events http.HandlerFunc, logger zerolog.Logger) *Handler {
	return &Handler{
		ctrl:      ctrl,
		analytics: a,
		templates: t,
		settings:  s,
		events:    events,
		log:       logger,
	}
}

// Mount регистрирует маршруты API на роутере.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/run/start", h.startRun)
		r.Post("/run/stop", h.stopRun)
		r.Post("/run/reset", h.resetRun)
		r.Get("/run/status", h.runStatus)

		r.Post("/connection/sent", h.connectionSent)
		r.Post("/connection/failed", h.connectionFailed)
		r.Post("/heartbeat", h.heartbeat)

		r.Get("/analytics", h.getAnalytics)
		r.Get("/analytics/export", h.exportAnalytics)

		r.Get("/templates", h.listTemplates)
		r.Put("/templates/{id}", h.saveTemplate)
		r.Delete("/templates/{id}", h.deleteTemplate)

		r.Get("/settings", h.getSettings)
		r.Patch("/settings", h.patchSettings)

		if h.events != nil {
			r.Get("/events", h.events)
		}
	})
}

type startRequest struct {
	Queue      []string `json:"queue"`
	Message    string   `json:"message"`
	DelayMs    int64    `json:"delay_ms"`
	TemplateID string   `json:"template_id"`
	StartIndex *int     `json:"start_index"`
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DelayMs < 0 {
		writeError(w, http.StatusBadRequest, "delay_ms must not be negative")
		return
	}
	queue := make([]domain.ProfileRef, 0, len(req.Queue))
	for _, ref := range req.Queue {
		queue = append(queue, domain.ProfileRef(ref))
	}
	err := h.ctrl.Start(r.Context(), domain.RunParams{
		Queue:       queue,
		MessageText: req.Message,
		TemplateID:  req.TemplateID,
		DelayMs:     req.DelayMs,
		StartIndex:  req.StartIndex,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *Handler) stopRun(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *Handler) resetRun(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Reset(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "reset_complete"})
}

func (h *Handler) runStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.ctrl.Status())
}

type outcomeRequest struct {
	Reason      string              `json:"reason"`
	ProfileData *domain.ProfileData `json:"profile_data"`
}

// decodeOptional разбирает тело, допуская пустой запрос.
func decodeOptional(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) connectionSent(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ctrl.ConnectionSent(r.Context(), req.ProfileData); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *Handler) connectionFailed(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ctrl.ConnectionFailed(r.Context(), req.Reason, req.ProfileData); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	h.ctrl.HeartbeatResponse(r.Context())
	writeJSON(w, map[string]string{"status": "alive"})
}

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.Query(r.URL.Query().Get("range"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"analytics": data})
}

func (h *Handler) exportAnalytics(w http.ResponseWriter, _ *http.Request) {
	csv, err := h.analytics.ExportCSV()
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="connection-analytics.csv"`)
	_, _ = w.Write([]byte(csv))
}

func (h *Handler) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"templates": h.templates.All()})
}

type templateRequest struct {
	Body         string             `json:"body"`
	AllTemplates domain.TemplateSet `json:"all_templates"`
}

func (h *Handler) saveTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AllTemplates != nil {
		if err := h.templates.ReplaceAll(req.AllTemplates); err != nil {
			h.fail(w, err)
			return
		}
	}
	if req.Body != "" || req.AllTemplates == nil {
		if err := h.templates.Save(chi.URLParam(r, "id"), req.Body); err != nil {
			h.fail(w, err)
			return
		}
	}
	writeJSON(w, map[string]any{"templates": h.templates.All()})
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *Handler) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"settings": h.settings.Current()})
}

func (h *Handler) patchSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.settings.Update(patch)
	writeJSON(w, map[string]string{"status": "settings_saved"})
}

// fail переводит ошибку сценария в HTTP-ответ.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, automation.ErrAlreadyRunning), errors.Is(err, templates.ErrDefaultTemplate):
		status = http.StatusConflict
	case errors.Is(err, analytics.ErrInvalidRange), errors.Is(err, templates.ErrInvalidTemplate):
		status = http.StatusBadRequest
	case errors.Is(err, analytics.ErrNoData), errors.Is(err, templates.ErrTemplateNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("api: request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
