package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puddingmeetup/server/internal/domain/attendance"
	"github.com/puddingmeetup/server/internal/domain/events"
	"github.com/puddingmeetup/server/internal/domain/users"
)

// In-memory stores shared by the handler tests. They mirror the Postgres
// repositories closely enough to exercise the full handler-service path.

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]users.User
	byEmail map[string]string
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]users.User), byEmail: make(map[string]string)}
}

func (r *memUserRepo) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[params.Email]; ok {
		return nil, users.ErrEmailTaken
	}
	user := users.User{
		ID:           params.ID,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now(),
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return &user, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byID[id]; ok {
		return &user, nil
	}
	return nil, users.ErrNotFound
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byEmail[email]; ok {
		user := r.byID[id]
		return &user, nil
	}
	return nil, users.ErrNotFound
}

type memEventRepo struct {
	mu     sync.Mutex
	events map[string]events.Event
	names  map[string]string
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]events.Event), names: make(map[string]string)}
}

func (r *memEventRepo) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	event := events.Event{
		ID:          params.ID,
		Title:       params.Title,
		OrganizerID: params.OrganizerID,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		Capacity:    params.Capacity,
		Status:      events.StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.events[event.ID] = event
	return &event, nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id string) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event, ok := r.events[id]; ok {
		return &event, nil
	}
	return nil, events.ErrNotFound
}

func (r *memEventRepo) GetSummary(ctx context.Context, id string) (*events.Summary, error) {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return &events.Summary{Event: *event, OrganizerName: r.names[event.OrganizerID]}, nil
}

func (r *memEventRepo) List(ctx context.Context, filters events.Filters, pagination events.Pagination) ([]events.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summaries := make([]events.Summary, 0, len(r.events))
	for _, event := range r.events {
		if filters.Status != "" && event.Status != filters.Status {
			continue
		}
		if filters.Center != nil {
			distance := events.HaversineMeters(
				filters.Center.Latitude, filters.Center.Longitude,
				event.Latitude, event.Longitude)
			if distance > filters.RadiusMeters {
				continue
			}
		}
		summaries = append(summaries, events.Summary{Event: event, OrganizerName: r.names[event.OrganizerID]})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.Before(summaries[j].StartTime)
	})
	if pagination.Limit > 0 && len(summaries) > pagination.Limit {
		summaries = summaries[:pagination.Limit]
	}
	return summaries, nil
}

func (r *memEventRepo) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok || event.Status != fromStatus {
		return false, nil
	}
	event.Status = toStatus
	event.UpdatedAt = time.Now()
	r.events[id] = event
	return true, nil
}

func (r *memEventRepo) MarkEnded(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for id, event := range r.events {
		if event.Status == events.StatusUpcoming && event.EndTime.Before(now) {
			event.Status = events.StatusEnded
			r.events[id] = event
			changed++
		}
	}
	return changed, nil
}

type memAttendanceRepo struct {
	mu       sync.Mutex
	events   *memEventRepo
	requests map[string]attendance.Request
}

func newMemAttendanceRepo(eventRepo *memEventRepo) *memAttendanceRepo {
	return &memAttendanceRepo{events: eventRepo, requests: make(map[string]attendance.Request)}
}

func (r *memAttendanceRepo) GetEvent(ctx context.Context, eventID string) (*attendance.AdmissionEvent, error) {
	event, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, attendance.ErrEventNotFound
	}
	return &attendance.AdmissionEvent{
		ID:          event.ID,
		OrganizerID: event.OrganizerID,
		Capacity:    event.Capacity,
		Status:      event.Status,
	}, nil
}

func (r *memAttendanceRepo) Find(ctx context.Context, eventID, userID string) (*attendance.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.EventID == eventID && request.UserID == userID {
			req := request
			return &req, nil
		}
	}
	return nil, nil
}

func (r *memAttendanceRepo) GetByID(ctx context.Context, requestID string) (*attendance.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request, ok := r.requests[requestID]; ok {
		return &request, nil
	}
	return nil, attendance.ErrRequestNotFound
}

func (r *memAttendanceRepo) Create(ctx context.Context, request attendance.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[request.ID] = request
	return nil
}

func (r *memAttendanceRepo) ListByEventAndStatus(ctx context.Context, eventID, status string) ([]attendance.RequestWithUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]attendance.RequestWithUser, 0)
	for _, request := range r.requests {
		if request.EventID == eventID && request.Status == status {
			items = append(items, attendance.RequestWithUser{Request: request})
		}
	}
	return items, nil
}

func (r *memAttendanceRepo) CountApproved(ctx context.Context, eventID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countApprovedLocked(eventID), nil
}

func (r *memAttendanceRepo) countApprovedLocked(eventID string) int {
	count := 0
	for _, request := range r.requests {
		if request.EventID == eventID && request.Status == attendance.StatusApproved {
			count++
		}
	}
	return count
}

func (r *memAttendanceRepo) Approve(ctx context.Context, eventID, requestID string, respondedAt time.Time) error {
	event, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[requestID]
	if !ok || request.EventID != eventID {
		return attendance.ErrRequestNotFound
	}
	if request.Status != attendance.StatusPending {
		return attendance.ErrInvalidState
	}
	if r.countApprovedLocked(eventID) >= event.Capacity {
		return attendance.ErrCapacityExceeded
	}
	request.Status = attendance.StatusApproved
	request.RespondedAt = &respondedAt
	r.requests[requestID] = request
	return nil
}

func (r *memAttendanceRepo) Reject(ctx context.Context, eventID, requestID string, respondedAt time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[requestID]
	if !ok || request.EventID != eventID {
		return attendance.ErrRequestNotFound
	}
	if request.Status != attendance.StatusPending {
		return attendance.ErrInvalidState
	}
	request.Status = attendance.StatusRejected
	request.RespondedAt = &respondedAt
	request.RejectionReason = reason
	r.requests[requestID] = request
	return nil
}
