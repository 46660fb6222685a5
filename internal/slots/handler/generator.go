package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"trimly/internal/slots/service"
	httputil "trimly/pkg/http"
	"trimly/pkg/logger"
)

type GeneratorHandler struct {
	service service.GeneratorService
	log     *logger.Logger
}

func NewGeneratorHandler(service service.GeneratorService, log *logger.Logger) *GeneratorHandler {
	return &GeneratorHandler{
		service: service,
		log:     log,
	}
}

// generationRequest is the shared body for the generation endpoints. All
// fields are optional; zero values fall back to configured defaults. A
// concrete Date on the shift endpoint generates that single date.
type generationRequest struct {
	Date            string `json:"date,omitempty"`
	DaysAhead       int    `json:"days_ahead,omitempty"`
	SlotDurationMin int    `json:"slot_duration_min,omitempty"`
}

func (h *GeneratorHandler) decodeRequest(w http.ResponseWriter, r *http.Request, req *generationRequest) bool {
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil && !errors.Is(err, io.EOF) {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "decodeRequest", "error", writeErr)
		}
		return false
	}
	return true
}

func (h *GeneratorHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *GeneratorHandler) GenerateForShift(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	shiftID := ps.ByName("id")

	var req generationRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	if req.Date != "" {
		result, err := h.service.Generate(r.Context(), shiftID, req.Date, req.SlotDurationMin)
		if err != nil {
			h.writeError(w, "GenerateForShift", err)
			return
		}
		if err := httputil.WriteCreated(w, result); err != nil {
			h.log.Error("failed to write created response", "handler", "GenerateForShift", "error", err)
		}
		return
	}

	result, err := h.service.GenerateForShift(r.Context(), shiftID, req.DaysAhead, req.SlotDurationMin)
	if err != nil {
		h.writeError(w, "GenerateForShift", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "GenerateForShift", "error", err)
	}
}

func (h *GeneratorHandler) GenerateForEmployee(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	employeeID := ps.ByName("id")

	var req generationRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.GenerateForEmployee(r.Context(), employeeID, req.DaysAhead, req.SlotDurationMin)
	if err != nil {
		h.writeError(w, "GenerateForEmployee", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "GenerateForEmployee", "error", err)
	}
}

func (h *GeneratorHandler) GenerateForBusiness(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	businessID := ps.ByName("id")

	var req generationRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.GenerateForBusiness(r.Context(), businessID, req.DaysAhead, req.SlotDurationMin)
	if err != nil {
		h.writeError(w, "GenerateForBusiness", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "GenerateForBusiness", "error", err)
	}
}

func (h *GeneratorHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/shifts/id/:id/slots", h.GenerateForShift)
	router.POST("/api/v1/employees/id/:id/slots", h.GenerateForEmployee)
	router.POST("/api/v1/businesses/id/:id/slots", h.GenerateForBusiness)
}
