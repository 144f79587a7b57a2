package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/puddingmeetup/server/internal/domain/ids"
	"github.com/puddingmeetup/server/internal/metrics"
	"github.com/puddingmeetup/server/internal/sanitize"
	"github.com/rs/zerolog"
)

// Service is the admission engine: it is the only writer of attendance state
// and of the cached attendee count on events.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "attendance").Logger(),
		now:    time.Now,
	}
}

// RequestJoin records a user's intent to join an event. Capacity is not
// checked here; pending requests do not consume capacity.
func (s *Service) RequestJoin(ctx context.Context, eventID, userID, message string) (*Request, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID == userID {
		return nil, ErrSelfJoin
	}

	existing, err := s.repo.Find(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("check existing request: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyRequested
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint request id: %w", err)
	}

	request := Request{
		ID:          id,
		EventID:     eventID,
		UserID:      userID,
		Status:      StatusPending,
		Message:     sanitize.Text(message),
		RequestedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	metrics.JoinRequestsTotal.Inc()
	s.logger.Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("request_id", request.ID).
		Msg("join requested")
	return &request, nil
}

// Listing is the organizer's view of an event's requests.
type Listing struct {
	Pending       []RequestWithUser
	Approved      []RequestWithUser
	Capacity      int
	ApprovedCount int
}

// ListRequests returns pending and approved requests with requester identity.
// Organizer only.
func (s *Service) ListRequests(ctx context.Context, eventID, callerID string) (*Listing, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != callerID {
		return nil, ErrForbidden
	}

	pending, err := s.repo.ListByEventAndStatus(ctx, eventID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	approved, err := s.repo.ListByEventAndStatus(ctx, eventID, StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}

	return &Listing{
		Pending:       pending,
		Approved:      approved,
		Capacity:      event.Capacity,
		ApprovedCount: len(approved),
	}, nil
}

// Approve flips a pending request to APPROVED. The capacity check and the
// status flip commit atomically in the repository; this method only verifies
// the preconditions that need no serialization.
func (s *Service) Approve(ctx context.Context, eventID, requestID, callerID string) error {
	request, event, err := s.loadForResponse(ctx, eventID, requestID, callerID)
	if err != nil {
		return err
	}
	if request.Status != StatusPending {
		return ErrInvalidState
	}

	if err := s.repo.Approve(ctx, eventID, requestID, s.now().UTC()); err != nil {
		if err == ErrCapacityExceeded {
			metrics.CapacityConflictsTotal.Inc()
			s.logger.Warn().
				Str("event_id", eventID).
				Str("request_id", requestID).
				Int("capacity", event.Capacity).
				Msg("approval refused, event full")
		}
		return err
	}

	metrics.ApprovalsTotal.Inc()
	s.logger.Info().
		Str("event_id", eventID).
		Str("request_id", requestID).
		Msg("request approved")
	return nil
}

// Reject flips a pending request to REJECTED. No capacity interaction.
func (s *Service) Reject(ctx context.Context, eventID, requestID, callerID, reason string) error {
	request, _, err := s.loadForResponse(ctx, eventID, requestID, callerID)
	if err != nil {
		return err
	}
	if request.Status != StatusPending {
		return ErrInvalidState
	}

	reason = sanitize.Text(reason)
	if reason == "" {
		reason = NoReasonProvided
	}

	if err := s.repo.Reject(ctx, eventID, requestID, s.now().UTC(), reason); err != nil {
		return err
	}

	metrics.RejectionsTotal.Inc()
	s.logger.Info().
		Str("event_id", eventID).
		Str("request_id", requestID).
		Msg("request rejected")
	return nil
}

// loadForResponse resolves the request and event for an approve or reject
// call and verifies ownership. A request that belongs to a different event
// is reported as not found rather than leaking its existence.
func (s *Service) loadForResponse(ctx context.Context, eventID, requestID, callerID string) (*Request, *AdmissionEvent, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if request.EventID != eventID {
		return nil, nil, ErrRequestNotFound
	}

	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if event.OrganizerID != callerID {
		return nil, nil, ErrForbidden
	}
	return request, event, nil
}
