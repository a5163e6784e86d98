package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/megabin/megabin/internal/api/models"
	"github.com/megabin/megabin/internal/api/response"
	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

// ScheduleService is the daily route service as seen by the admin API.
type ScheduleService interface {
	ParseDate(value string) (time.Time, error)
	Run(ctx context.Context, date time.Time, opts dailyroute.RunOptions) (*optimization.DailyOptimizationResult, error)
	Preview(ctx context.Context, date time.Time) (*dailyroute.Preview, error)
	Schedule(ctx context.Context, date time.Time) ([]schedule.Entry, error)
}

// ScheduleHandler handles the admin schedule endpoints.
type ScheduleHandler struct {
	service ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(service ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Optimize handles POST /v1/admin/schedules:optimize - regenerate a day's routes.
func (h *ScheduleHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	date, err := h.service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	var opts dailyroute.RunOptions
	if raw := r.URL.Query().Get("overwrite"); raw != "" {
		opts.Overwrite, err = strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "overwrite", Message: "must be true or false", Code: "invalid"},
			})
			return
		}
	}

	result, err := h.service.Run(r.Context(), date, opts)
	if err != nil {
		writeRunError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewOptimizationResult(date, result))
}

// Preview handles GET /v1/admin/schedules:preview - show the inputs of a run.
func (h *ScheduleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	date, err := h.service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	preview, err := h.service.Preview(r.Context(), date)
	if err != nil {
		writeRunError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewSchedulePreview(preview))
}

// Get handles GET /v1/admin/schedules/{date} - list the persisted schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, err := h.service.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	entries, err := h.service.Schedule(r.Context(), date)
	if err != nil {
		writeRunError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewSchedule(date, entries))
}
