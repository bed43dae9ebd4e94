// File: internal/store/store.go
package store

import (
	"context"
	"time"

	"lifelink_backend/internal/domain"
)

// Unsubscribe stops a live subscription. It is safe to call more than once.
type Unsubscribe func()

// UserQuery filters the users collection. Zero values do not filter.
type UserQuery struct {
	Role               domain.Role
	AvailableOnly      bool
	VerificationStatus domain.VerificationStatus
}

// RequestQuery filters the requests collection. Zero values do not filter.
type RequestQuery struct {
	PatientID     string
	Statuses      []domain.RequestStatus
	CreatedBefore *time.Time
}

// UserRepository is the query and mutation surface over users/{id} and its
// donations sub-collection.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// CreateUser writes the whole profile, replacing any existing document.
	// CreatedAt and UpdatedAt are assigned by the store.
	CreateUser(ctx context.Context, user *domain.User) error
	// UpdateUser merges patch into an existing profile and fails with
	// common.ErrNotFound when there is none.
	UpdateUser(ctx context.Context, id string, patch UserPatch) error
	// MergeUser merges patch into the profile, creating it when missing.
	MergeUser(ctx context.Context, id string, patch UserPatch) error
	ListUsers(ctx context.Context, q UserQuery) ([]domain.User, error)
	ListDonations(ctx context.Context, donorID string) ([]domain.Donation, error)

	WatchUser(ctx context.Context, id string, fn func(*domain.User, error)) (Unsubscribe, error)
	WatchUsers(ctx context.Context, q UserQuery, fn func([]domain.User, error)) (Unsubscribe, error)
}

// RequestRepository is the query and mutation surface over requests/{id} and
// its messages sub-collection.
type RequestRepository interface {
	// CreateRequest stores req as pending, assigns its ID and creation time.
	CreateRequest(ctx context.Context, req *domain.Request) error
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	// UpdateRequest is a plain merge update for transitions without a
	// cross-entity invariant.
	UpdateRequest(ctx context.Context, id string, patch RequestPatch) error
	// ListRequests returns matching requests in no particular order.
	ListRequests(ctx context.Context, q RequestQuery) ([]domain.Request, error)
	// AddMessage appends msg with a store-assigned ID and timestamp.
	AddMessage(ctx context.Context, requestID string, msg *domain.Message) error
	// ListMessages returns the messages of a request, oldest first.
	ListMessages(ctx context.Context, requestID string) ([]domain.Message, error)

	WatchRequest(ctx context.Context, id string, fn func(*domain.Request, error)) (Unsubscribe, error)
	WatchRequests(ctx context.Context, q RequestQuery, fn func([]domain.Request, error)) (Unsubscribe, error)
	WatchMessages(ctx context.Context, requestID string, fn func([]domain.Message, error)) (Unsubscribe, error)
}

// Tx is the view of the store inside a transaction. Every read must happen
// before the first write.
type Tx interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) error
	UpdateRequest(ctx context.Context, id string, patch RequestPatch) error
	IncrementStock(ctx context.Context, userID string, group domain.BloodGroup, delta int) error
	IncrementLivesSaved(ctx context.Context, userID string, delta int) error
	// CreateDonation writes users/{donorID}/donations/{d.ID}. CompletedAt is
	// assigned by the store.
	CreateDonation(ctx context.Context, donorID string, d *domain.Donation) error
	// RecordDeclaration audits the checklist items a donor affirmed, with
	// the request they were affirmed for (empty when going available).
	RecordDeclaration(ctx context.Context, userID, requestID string, items []string) error
}

// Transactor runs fn with snapshot reads and a conditional commit. When the
// commit detects a conflicting write the whole of fn is retried, up to a
// bounded number of attempts. An error returned by fn rolls back every write
// fn made and is returned unchanged.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store bundles everything the service layer needs from a backend.
type Store interface {
	UserRepository
	RequestRepository
	Transactor
	Close() error
}
