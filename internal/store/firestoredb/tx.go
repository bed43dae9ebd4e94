// File: internal/store/firestoredb/tx.go
package firestoredb

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// stockView is the stock of a user as read in this transaction plus the
// increments applied since.
type stockView struct {
	stock domain.Stock
}

// tx implements store.Tx on a Firestore transaction.
type tx struct {
	c     *Client
	ftx   *firestore.Transaction
	reads map[string]*stockView
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	snap, err := t.ftx.Get(t.c.users().Doc(id))
	if err != nil {
		return nil, mapErr(err, "get", "user", id)
	}
	u, err := decodeUser(snap)
	if err != nil {
		return nil, err
	}
	view := &stockView{stock: make(domain.Stock, len(u.BloodStock))}
	for g, n := range u.BloodStock {
		view.stock[g] = n
	}
	t.reads[id] = view
	return u, nil
}

func (t *tx) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	snap, err := t.ftx.Get(t.c.requests().Doc(id))
	if err != nil {
		return nil, mapErr(err, "get", "request", id)
	}
	return decodeRequest(snap)
}

func (t *tx) UpdateUser(ctx context.Context, id string, patch store.UserPatch) error {
	if err := t.ftx.Update(t.c.users().Doc(id), userUpdates(patch)); err != nil {
		return mapErr(err, "update", "user", id)
	}
	if view, ok := t.reads[id]; ok {
		for g, n := range patch.BloodStock {
			view.stock[g] = n
		}
	}
	return nil
}

func (t *tx) UpdateRequest(ctx context.Context, id string, patch store.RequestPatch) error {
	if err := t.ftx.Update(t.c.requests().Doc(id), requestUpdates(patch)); err != nil {
		return mapErr(err, "update", "request", id)
	}
	return nil
}

// IncrementStock applies an atomic increment. A decrement is only allowed
// on a user read earlier in the same transaction, so the snapshot proves the
// counter stays non-negative at commit.
func (t *tx) IncrementStock(ctx context.Context, userID string, group domain.BloodGroup, delta int) error {
	if delta < 0 {
		view, ok := t.reads[userID]
		if !ok {
			return fmt.Errorf("decrement stock of %s: user was not read in this transaction", userID)
		}
		if view.stock[group]+delta < 0 {
			return common.ErrConflict.WithDetails(fmt.Sprintf("stock for %s would become negative", group))
		}
	}
	err := t.ftx.Update(t.c.users().Doc(userID), []firestore.Update{
		{FieldPath: firestore.FieldPath{"bloodStock", string(group)}, Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return mapErr(err, "increment stock", "user", userID)
	}
	if view, ok := t.reads[userID]; ok {
		view.stock[group] += delta
	}
	return nil
}

func (t *tx) IncrementLivesSaved(ctx context.Context, userID string, delta int) error {
	err := t.ftx.Update(t.c.users().Doc(userID), []firestore.Update{
		{Path: "livesSaved", Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	return mapErr(err, "increment lives saved", "user", userID)
}

func (t *tx) CreateDonation(ctx context.Context, donorID string, d *domain.Donation) error {
	ref := t.c.users().Doc(donorID).Collection(donationsCollection).Doc(d.ID)
	err := t.ftx.Set(ref, donationDoc{
		RequestID:   d.ID,
		PatientName: d.PatientName,
		BloodGroup:  string(d.BloodGroup),
		Location:    toGeoDoc(d.Location),
		Status:      string(d.Status),
	})
	if err != nil {
		return mapErr(err, "create", "donation", d.ID)
	}
	d.DonorID = donorID
	return nil
}

func (t *tx) RecordDeclaration(ctx context.Context, userID, requestID string, items []string) error {
	ref := t.c.users().Doc(userID).Collection(declarationsCollection).NewDoc()
	err := t.ftx.Create(ref, declarationDoc{RequestID: requestID, Items: items})
	return mapErr(err, "record", "declaration", ref.ID)
}
