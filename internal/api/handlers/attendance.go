package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/puddingmeetup/server/internal/api/middleware"
	"github.com/puddingmeetup/server/internal/api/problem"
	"github.com/puddingmeetup/server/internal/domain/attendance"
)

type AttendanceHandler struct {
	Service *attendance.Service
	Env     string
}

func NewAttendanceHandler(service *attendance.Service, env string) *AttendanceHandler {
	return &AttendanceHandler{Service: service, Env: env}
}

type joinRequest struct {
	Message string `json:"message" validate:"max=500"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type requestResponse struct {
	ID              string     `json:"id"`
	EventID         string     `json:"eventId"`
	UserID          string     `json:"userId"`
	UserName        string     `json:"userName,omitempty"`
	Status          string     `json:"status"`
	Message         string     `json:"message,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	RequestedAt     time.Time  `json:"requestedAt"`
	RespondedAt     *time.Time `json:"respondedAt,omitempty"`
}

type requestListResponse struct {
	Pending       []requestResponse `json:"pending"`
	Approved      []requestResponse `json:"approved"`
	Capacity      int               `json:"capacity"`
	ApprovedCount int               `json:"approvedCount"`
}

func (h *AttendanceHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(fieldErrors(err)))
		return
	}

	request, err := h.Service.RequestJoin(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()), req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestResponse(request, ""))
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Service.ListRequests(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, requestListResponse{
		Pending:       toRequestResponses(listing.Pending),
		Approved:      toRequestResponses(listing.Approved),
		Capacity:      listing.Capacity,
		ApprovedCount: listing.ApprovedCount,
	})
}

func (h *AttendanceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Approve(r.Context(), r.PathValue("id"), r.PathValue("requestId"), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttendanceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(fieldErrors(err)))
		return
	}

	err := h.Service.Reject(r.Context(), r.PathValue("id"), r.PathValue("requestId"), middleware.UserID(r.Context()), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttendanceHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, attendance.ErrEventNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env)
	case errors.Is(err, attendance.ErrRequestNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Request not found", err, h.Env)
	case errors.Is(err, attendance.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, h.Env)
	case errors.Is(err, attendance.ErrSelfJoin):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Cannot join your own event", err, h.Env)
	case errors.Is(err, attendance.ErrAlreadyRequested):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Already requested", err, h.Env)
	case errors.Is(err, attendance.ErrInvalidState):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Request already responded to", err, h.Env)
	case errors.Is(err, attendance.ErrCapacityExceeded):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Event is at capacity", err, h.Env)
	default:
		writeUnavailable(w, r, err, h.Env)
	}
}

func toRequestResponse(request *attendance.Request, userName string) requestResponse {
	return requestResponse{
		ID:              request.ID,
		EventID:         request.EventID,
		UserID:          request.UserID,
		UserName:        userName,
		Status:          request.Status,
		Message:         request.Message,
		RejectionReason: request.RejectionReason,
		RequestedAt:     request.RequestedAt,
		RespondedAt:     request.RespondedAt,
	}
}

func toRequestResponses(items []attendance.RequestWithUser) []requestResponse {
	out := make([]requestResponse, 0, len(items))
	for i := range items {
		out = append(out, toRequestResponse(&items[i].Request, items[i].UserName))
	}
	return out
}
