// File: internal/user/repository.go
package user

import (
	"context"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// Repository is the part of the store the profile service reads and writes.
// Both store backends satisfy it.
type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, id string, patch store.UserPatch) error
	MergeUser(ctx context.Context, id string, patch store.UserPatch) error
	ListUsers(ctx context.Context, q store.UserQuery) ([]domain.User, error)
	ListDonations(ctx context.Context, donorID string) ([]domain.Donation, error)
	ListRequests(ctx context.Context, q store.RequestQuery) ([]domain.Request, error)
}

// Indexer receives every profile after it changes, to keep the donor
// directory search current.
type Indexer interface {
	IndexUser(ctx context.Context, u *domain.User) error
}
