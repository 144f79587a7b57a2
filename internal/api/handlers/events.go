package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/puddingmeetup/server/internal/api/middleware"
	"github.com/puddingmeetup/server/internal/api/problem"
	"github.com/puddingmeetup/server/internal/domain/events"
	"github.com/puddingmeetup/server/internal/domain/ids"
)

type EventsHandler struct {
	Service *events.Service
	Env     string
}

func NewEventsHandler(service *events.Service, env string) *EventsHandler {
	return &EventsHandler{Service: service, Env: env}
}

type createEventRequest struct {
	Title     string    `json:"title" validate:"required,max=200"`
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Capacity  int       `json:"capacity" validate:"gte=0,lte=10000"`
}

type eventResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	OrganizerID   string    `json:"organizerId"`
	OrganizerName string    `json:"organizerName,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Capacity      int       `json:"capacity"`
	Status        string    `json:"status"`
	AttendeeCount int       `json:"attendeeCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type eventListResponse struct {
	Items []eventResponse `json:"items"`
	Count int             `json:"count"`
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, pagination, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	summaries, err := h.Service.List(r.Context(), filters, pagination)
	if err != nil {
		writeUnavailable(w, r, err, h.Env)
		return
	}

	items := make([]eventResponse, 0, len(summaries))
	for i := range summaries {
		items = append(items, toEventResponse(&summaries[i].Event, summaries[i].OrganizerName))
	}
	writeJSON(w, http.StatusOK, eventListResponse{Items: items, Count: len(items)})
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(fieldErrors(err)))
		return
	}

	event, err := h.Service.Create(r.Context(), middleware.UserID(r.Context()), events.CreateInput{
		Title:     req.Title,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
	})
	if err != nil {
		var filterErr events.FilterError
		if errors.As(err, &filterErr) {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
				problem.WithErrors(map[string]any{filterErr.Field: filterErr.Message}))
			return
		}
		writeUnavailable(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(event, ""))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := ids.ValidateULID(id); err != nil {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env)
		return
	}

	summary, err := h.Service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env)
			return
		}
		writeUnavailable(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(&summary.Event, summary.OrganizerName))
}

func (h *EventsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Cancel(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env)
		case errors.Is(err, events.ErrForbidden):
			problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, h.Env)
		case errors.Is(err, events.ErrInvalidState):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Event is not upcoming", err, h.Env)
		default:
			writeUnavailable(w, r, err, h.Env)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toEventResponse(event *events.Event, organizerName string) eventResponse {
	return eventResponse{
		ID:            event.ID,
		Title:         event.Title,
		OrganizerID:   event.OrganizerID,
		OrganizerName: organizerName,
		Latitude:      event.Latitude,
		Longitude:     event.Longitude,
		StartTime:     event.StartTime,
		EndTime:       event.EndTime,
		Capacity:      event.Capacity,
		Status:        event.Status,
		AttendeeCount: event.AttendeeCount,
		CreatedAt:     event.CreatedAt,
	}
}
