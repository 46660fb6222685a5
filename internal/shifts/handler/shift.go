package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"trimly/internal/shifts/service"
	httputil "trimly/pkg/http"
	"trimly/pkg/logger"
	"trimly/pkg/middleware"
	"trimly/pkg/model"
)

type ShiftHandler struct {
	service service.ShiftService
	log     *logger.Logger
}

func NewShiftHandler(service service.ShiftService, log *logger.Logger) *ShiftHandler {
	return &ShiftHandler{
		service: service,
		log:     log,
	}
}

func (h *ShiftHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var shift model.Shift
	if err := json.NewDecoder(r.Body).Decode(&shift); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "error", writeErr)
		}
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	if err := h.service.Create(r.Context(), principal, &shift); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, shift); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *ShiftHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	shift, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, shift); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	businessID := strings.TrimSpace(query.Get("business_id"))
	employeeID := strings.TrimSpace(query.Get("employee_id"))

	if employeeID != "" {
		shifts, err := h.service.ListForEmployee(r.Context(), employeeID)
		if err != nil {
			h.writeError(w, "List", err)
			return
		}
		if err := httputil.WriteSuccess(w, shifts); err != nil {
			h.log.Error("failed to write success response", "handler", "List", "error", err)
		}
		return
	}

	if businessID == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Either 'business_id' or 'employee_id' query parameter is required",
		}); err != nil {
			h.log.Error("failed to write JSON response", "handler", "List", "error", err)
		}
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	shifts, totalCount, err := h.service.ListForBusiness(r.Context(), businessID, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, shifts, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "error", err)
	}
}

func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.ShiftUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "error", writeErr)
		}
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	if err := h.service.Update(r.Context(), principal, id, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ShiftHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	principal := middleware.PrincipalFrom(r.Context())
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ShiftHandler) EmployeeSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	employeeID := ps.ByName("id")

	summaries, err := h.service.EmployeeSummary(r.Context(), employeeID)
	if err != nil {
		h.writeError(w, "EmployeeSummary", err)
		return
	}

	if err := httputil.WriteSuccess(w, summaries); err != nil {
		h.log.Error("failed to write success response", "handler", "EmployeeSummary", "error", err)
	}
}

func (h *ShiftHandler) ListEmployees(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	businessID := ps.ByName("id")

	ids, err := h.service.EmployeeIDs(r.Context(), businessID)
	if err != nil {
		h.writeError(w, "ListEmployees", err)
		return
	}

	if err := httputil.WriteSuccess(w, map[string]any{"employee_ids": ids}); err != nil {
		h.log.Error("failed to write success response", "handler", "ListEmployees", "error", err)
	}
}

func (h *ShiftHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/shifts", h.Create)
	router.GET("/api/v1/shifts", h.List)
	router.GET("/api/v1/shifts/id/:id", h.GetByID)
	router.PATCH("/api/v1/shifts/id/:id", h.Update)
	router.DELETE("/api/v1/shifts/id/:id", h.Delete)
	router.GET("/api/v1/employees/id/:id/shifts", h.EmployeeSummary)
	router.GET("/api/v1/businesses/id/:id/employees", h.ListEmployees)
}
