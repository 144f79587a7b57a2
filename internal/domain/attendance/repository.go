package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrRequestNotFound  = errors.New("attendance request not found")
	ErrForbidden        = errors.New("only the organizer may respond to requests")
	ErrSelfJoin         = errors.New("organizers cannot join their own event")
	ErrAlreadyRequested = errors.New("a request for this event already exists")
	ErrInvalidState     = errors.New("request is not pending")
	ErrCapacityExceeded = errors.New("event is at full capacity")
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// NoReasonProvided is stored when a rejection carries no reason.
const NoReasonProvided = "No reason provided"

// Request is one user's join attempt for one event. There is at most one per
// (event, user) pair, ever; rejection does not free the pair for a retry.
type Request struct {
	ID              string
	EventID         string
	UserID          string
	Status          string
	Message         string
	RejectionReason string
	RequestedAt     time.Time
	RespondedAt     *time.Time
}

// RequestWithUser attaches the requester's identity for organizer listings.
type RequestWithUser struct {
	Request
	UserName  string
	UserEmail string
}

// AdmissionEvent is the slice of an event the admission engine needs.
type AdmissionEvent struct {
	ID          string
	OrganizerID string
	Capacity    int
	Status      string
}

type Repository interface {
	GetEvent(ctx context.Context, eventID string) (*AdmissionEvent, error)
	// Find returns the request for (eventID, userID) or nil when none exists.
	Find(ctx context.Context, eventID, userID string) (*Request, error)
	GetByID(ctx context.Context, requestID string) (*Request, error)
	Create(ctx context.Context, request Request) error
	ListByEventAndStatus(ctx context.Context, eventID, status string) ([]RequestWithUser, error)
	// CountApproved returns the live number of APPROVED requests for an event.
	CountApproved(ctx context.Context, eventID string) (int, error)
	// Approve atomically re-checks the capacity and flips PENDING to APPROVED,
	// incrementing the event's cached attendee count in the same transaction.
	// The implementation must serialize concurrent approvals per event so that
	// with K free slots at most K callers succeed; the rest get
	// ErrCapacityExceeded. A non-pending request yields ErrInvalidState.
	Approve(ctx context.Context, eventID, requestID string, respondedAt time.Time) error
	// Reject flips PENDING to REJECTED, recording the reason. A non-pending
	// request yields ErrInvalidState.
	Reject(ctx context.Context, eventID, requestID string, respondedAt time.Time, reason string) error
}
