package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"trimly/internal/bookings/service"
	httputil "trimly/pkg/http"
	"trimly/pkg/logger"
	"trimly/pkg/middleware"
	"trimly/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *BookingHandler) writeBadRequest(w http.ResponseWriter, handler, message string) {
	if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
		Error: message,
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "error", err)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Create", "Invalid request body")
		return
	}

	// The caller books for themselves; the customer ID comes from the
	// authenticated principal, not the payload.
	req.CustomerID = middleware.PrincipalFrom(r.Context())

	booking, err := h.service.Allocate(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal := middleware.PrincipalFrom(r.Context())

	booking, err := h.service.GetByID(r.Context(), principal, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func bookingFilterFrom(r *http.Request) model.BookingFilter {
	query := r.URL.Query()
	return model.BookingFilter{
		DateFrom:       strings.TrimSpace(query.Get("date_from")),
		DateTo:         strings.TrimSpace(query.Get("date_to")),
		Status:         strings.TrimSpace(query.Get("status")),
		EmployeeID:     strings.TrimSpace(query.Get("employee_id")),
		CustomerSearch: strings.TrimSpace(query.Get("customer")),
	}
}

// List returns the authenticated principal's own bookings.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal := middleware.PrincipalFrom(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, err := h.service.ListForCustomer(r.Context(), principal, bookingFilterFrom(r), limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "error", err)
	}
}

func (h *BookingHandler) ListForBusiness(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal := middleware.PrincipalFrom(r.Context())
	businessID := ps.ByName("id")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListForBusiness", err)
		return
	}

	bookings, totalCount, err := h.service.ListForBusiness(r.Context(), principal, businessID, bookingFilterFrom(r), limit, offset)
	if err != nil {
		h.writeError(w, "ListForBusiness", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListForBusiness", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal := middleware.PrincipalFrom(r.Context())

	if err := h.service.Cancel(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal := middleware.PrincipalFrom(r.Context())

	if err := h.service.Confirm(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal := middleware.PrincipalFrom(r.Context())

	if err := h.service.Complete(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	httputil.WriteNoContent(w)
}

type resizeRequest struct {
	ServiceIDs []string `json:"service_ids"`
}

func (h *BookingHandler) Resize(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Resize", "Invalid request body")
		return
	}

	principal := middleware.PrincipalFrom(r.Context())

	booking, err := h.service.Resize(r.Context(), principal, ps.ByName("id"), req.ServiceIDs)
	if err != nil {
		h.writeError(w, "Resize", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Resize", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.PATCH("/api/v1/bookings/id/:id/confirm", h.Confirm)
	router.PATCH("/api/v1/bookings/id/:id/complete", h.Complete)
	router.PATCH("/api/v1/bookings/id/:id/services", h.Resize)
	router.GET("/api/v1/businesses/id/:id/bookings", h.ListForBusiness)
}
