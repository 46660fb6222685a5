package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"trimly/internal/availability/service"
	apperrors "trimly/pkg/errors"
	httputil "trimly/pkg/http"
	"trimly/pkg/logger"
	"trimly/pkg/model"
	"trimly/pkg/sanitizer"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	q := model.SlotQuery{
		BusinessID: strings.TrimSpace(query.Get("business_id")),
		EmployeeID: strings.TrimSpace(query.Get("employee_id")),
		DateFrom:   strings.TrimSpace(query.Get("date_from")),
		DateTo:     strings.TrimSpace(query.Get("date_to")),
	}
	if availableStr := query.Get("available"); availableStr != "" {
		available, err := strconv.ParseBool(availableStr)
		if err != nil {
			h.writeError(w, "Slots", apperrors.InvalidInput("'available' must be true or false"))
			return
		}
		q.AvailableOnly = &available
	}

	slots, err := h.service.SlotsInRange(r.Context(), q)
	if err != nil {
		h.writeError(w, "Slots", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "error", err)
	}
}

func (h *AvailabilityHandler) Runs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	employeeID := strings.TrimSpace(query.Get("employee_id"))
	date := strings.TrimSpace(query.Get("date"))

	if serviceIDsParam := strings.TrimSpace(query.Get("service_ids")); serviceIDsParam != "" {
		businessID := strings.TrimSpace(query.Get("business_id"))
		serviceIDs := sanitizer.SanitizeIDSlice(strings.Split(serviceIDsParam, ","))

		runs, err := h.service.FreeRunsForServices(r.Context(), businessID, employeeID, date, serviceIDs)
		if err != nil {
			h.writeError(w, "Runs", err)
			return
		}
		if err := httputil.WriteSuccess(w, runs); err != nil {
			h.log.Error("failed to write success response", "handler", "Runs", "error", err)
		}
		return
	}

	requiredSlots := 1
	if slotsStr := query.Get("slots"); slotsStr != "" {
		n, err := strconv.Atoi(slotsStr)
		if err != nil {
			h.writeError(w, "Runs", apperrors.InvalidInput("'slots' must be an integer"))
			return
		}
		requiredSlots = n
	}

	runs, err := h.service.FreeRuns(r.Context(), employeeID, date, requiredSlots)
	if err != nil {
		h.writeError(w, "Runs", err)
		return
	}

	if err := httputil.WriteSuccess(w, runs); err != nil {
		h.log.Error("failed to write success response", "handler", "Runs", "error", err)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/slots", h.Slots)
	router.GET("/api/v1/slots/runs", h.Runs)
}
