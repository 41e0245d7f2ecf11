package handler

import (
	"net/http"

	"clinicslots/internal/slots/service"
	"clinicslots/pkg/auth"
	apperrors "clinicslots/pkg/errors"
	httputil "clinicslots/pkg/http"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	lease        service.LeaseService
	availability service.AvailabilityService
	log          *logger.Logger
}

func NewSlotHandler(lease service.LeaseService, availability service.AvailabilityService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		lease:        lease,
		availability: availability,
		log:          log,
	}
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

// holder returns the authenticated caller, writing 401 when absent.
func (h *SlotHandler) holder(w http.ResponseWriter, r *http.Request, handler string) (string, bool) {
	holder, ok := auth.HolderFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("missing holder identity"))
		return "", false
	}
	return holder, true
}

func (h *SlotHandler) Hold(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	holder, ok := h.holder(w, r, "Hold")
	if !ok {
		return
	}

	var req model.HoldRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Hold", err)
		return
	}

	hold, err := h.lease.Hold(r.Context(), holder, &req)
	if err != nil {
		h.writeError(w, "Hold", err)
		return
	}

	if err := httputil.WriteCreated(w, hold); err != nil {
		h.log.Error("failed to write created response", "handler", "Hold", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) Release(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	holder, ok := h.holder(w, r, "Release")
	if !ok {
		return
	}

	var req model.ReleaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Release", err)
		return
	}

	result, err := h.lease.Release(r.Context(), holder, &req)
	if err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) BatchAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := h.holder(w, r, "BatchAvailability"); !ok {
		return
	}

	var req model.BatchAvailabilityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "BatchAvailability", err)
		return
	}

	counts, err := h.availability.BatchAvailability(r.Context(), &req)
	if err != nil {
		h.writeError(w, "BatchAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, counts); err != nil {
		h.log.Error("failed to write success response", "handler", "BatchAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	holder, ok := h.holder(w, r, "List")
	if !ok {
		return
	}

	query := r.URL.Query()
	slots, err := h.availability.ListSlots(r.Context(), holder,
		query.Get("doctor_id"),
		query.Get("date"),
		model.SlotStatus(query.Get("status")),
	)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) GetSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	holder, ok := h.holder(w, r, "GetSlot")
	if !ok {
		return
	}

	slot, err := h.lease.GetSlot(r.Context(), holder, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetSlot", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSlot", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) CompleteBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	holder, ok := h.holder(w, r, "CompleteBooking")
	if !ok {
		return
	}

	var req model.CompleteBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CompleteBooking", err)
		return
	}

	appt, err := h.lease.CompleteBooking(r.Context(), holder, &req)
	if err != nil {
		h.writeError(w, "CompleteBooking", err)
		return
	}

	if err := httputil.WriteCreated(w, appt); err != nil {
		h.log.Error("failed to write created response", "handler", "CompleteBooking", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	holder, ok := h.holder(w, r, "Reschedule")
	if !ok {
		return
	}

	var req model.CompleteBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	result, err := h.lease.Reschedule(r.Context(), holder, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Reschedule", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) GetAppointment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	holder, ok := h.holder(w, r, "GetAppointment")
	if !ok {
		return
	}

	appt, err := h.lease.GetAppointment(r.Context(), holder, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetAppointment", err)
		return
	}

	if err := httputil.WriteSuccess(w, appt); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAppointment", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots/hold", h.Hold)
	router.POST("/api/v1/slots/release", h.Release)
	router.POST("/api/v1/slots/batch-availability", h.BatchAvailability)
	router.GET("/api/v1/slots", h.List)
	router.GET("/api/v1/slots/id/:id", h.GetSlot)

	router.POST("/api/v1/appointments/complete-booking", h.CompleteBooking)
	router.POST("/api/v1/appointments/id/:id/reschedule", h.Reschedule)
	router.GET("/api/v1/appointments/id/:id", h.GetAppointment)
}
