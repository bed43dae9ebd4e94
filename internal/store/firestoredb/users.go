// File: internal/store/firestoredb/users.go
package firestoredb

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

func decodeUser(snap *firestore.DocumentSnapshot) (*domain.User, error) {
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	u := d.toDomain(snap.Ref.ID)
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	snap, err := c.users().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err, "get", "user", id)
	}
	return decodeUser(snap)
}

func (c *Client) CreateUser(ctx context.Context, user *domain.User) error {
	wr, err := c.users().Doc(user.ID).Set(ctx, newUserDoc(user))
	if err != nil {
		return mapErr(err, "create", "user", user.ID)
	}
	user.CreatedAt = wr.UpdateTime
	user.UpdatedAt = wr.UpdateTime
	return nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch store.UserPatch) error {
	if _, err := c.users().Doc(id).Update(ctx, userUpdates(patch)); err != nil {
		return mapErr(err, "update", "user", id)
	}
	return nil
}

func (c *Client) MergeUser(ctx context.Context, id string, patch store.UserPatch) error {
	if _, err := c.users().Doc(id).Set(ctx, userMerge(patch), firestore.MergeAll); err != nil {
		return mapErr(err, "merge", "user", id)
	}
	return nil
}

func (c *Client) userQuery(q store.UserQuery) firestore.Query {
	query := c.users().Query
	if q.Role != domain.RoleUnset {
		query = query.Where("role", "==", string(q.Role))
	}
	if q.AvailableOnly {
		query = query.Where("isAvailable", "==", true)
	}
	if q.VerificationStatus != domain.VerificationUnset {
		query = query.Where("verificationStatus", "==", string(q.VerificationStatus))
	}
	return query
}

func collectUsers(it *firestore.DocumentIterator) ([]domain.User, error) {
	defer it.Stop()
	var out []domain.User
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, mapErr(err, "list", "users", "")
		}
		u, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
}

func (c *Client) ListUsers(ctx context.Context, q store.UserQuery) ([]domain.User, error) {
	return collectUsers(c.userQuery(q).Documents(ctx))
}

func (c *Client) ListDonations(ctx context.Context, donorID string) ([]domain.Donation, error) {
	it := c.users().Doc(donorID).Collection(donationsCollection).
		OrderBy("completedAt", firestore.Desc).
		Documents(ctx)
	defer it.Stop()

	var out []domain.Donation
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, mapErr(err, "list", "donations", donorID)
		}
		var d donationDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode donation %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.toDomain(snap.Ref.ID, donorID))
	}
}
