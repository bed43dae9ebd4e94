// File: internal/store/gormstore/tx.go
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// errReadAfterWrite mirrors the document store rule that a transaction reads
// everything it needs before its first write.
var errReadAfterWrite = errors.New("transaction read after write")

// tx implements store.Tx. Rows read through it are locked until commit.
type tx struct {
	db     *gorm.DB
	store  *Store
	wrote  bool
	events []changefeed.Event
}

var _ store.Tx = (*tx)(nil)

func (t *tx) locked() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *tx) write(topic, key string) {
	t.wrote = true
	t.events = append(t.events, changefeed.Event{Topic: topic, Key: key})
}

func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if t.wrote {
		return nil, errReadAfterWrite
	}
	return getUser(t.locked().WithContext(ctx), id)
}

func (t *tx) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	if t.wrote {
		return nil, errReadAfterWrite
	}
	return getRequest(t.locked().WithContext(ctx), id)
}

func (t *tx) UpdateUser(ctx context.Context, id string, patch store.UserPatch) error {
	t.write(changefeed.TopicUsers, id)
	return updateUser(t.db.WithContext(ctx), id, patch, t.store.Now())
}

func (t *tx) UpdateRequest(ctx context.Context, id string, patch store.RequestPatch) error {
	t.write(changefeed.TopicRequests, id)
	return updateRequest(t.db.WithContext(ctx), id, patch, t.store.Now())
}

// IncrementStock adds delta to one stock counter. A decrement below zero
// fails and leaves the counter unchanged.
func (t *tx) IncrementStock(ctx context.Context, userID string, group domain.BloodGroup, delta int) error {
	t.write(changefeed.TopicUsers, userID)
	db := t.db.WithContext(ctx)

	if delta < 0 {
		res := db.Model(&stockRow{}).
			Where("user_id = ? AND blood_group = ? AND units >= ?", userID, string(group), -delta).
			Update("units", gorm.Expr("units + ?", delta))
		if res.Error != nil {
			return fmt.Errorf("decrement blood stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return common.ErrConflict.WithDetails(fmt.Sprintf("stock for %s would become negative", group))
		}
		return nil
	}

	row := stockRow{UserID: userID, BloodGroup: string(group), Units: delta}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "blood_group"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"units": gorm.Expr("blood_stocks.units + ?", delta)}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("increment blood stock: %w", err)
	}
	return nil
}

func (t *tx) IncrementLivesSaved(ctx context.Context, userID string, delta int) error {
	t.write(changefeed.TopicUsers, userID)
	res := t.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"lives_saved": gorm.Expr("lives_saved + ?", delta),
		"updated_at":  t.store.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("increment lives saved: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("user", userID)
	}
	return nil
}

func (t *tx) CreateDonation(ctx context.Context, donorID string, d *domain.Donation) error {
	t.write(changefeed.TopicDonations, donorID)
	d.DonorID = donorID
	d.CompletedAt = t.store.Now()
	lat, lng := coords(d.Location)
	row := donationRow{
		DonorID:     donorID,
		ID:          d.ID,
		PatientName: d.PatientName,
		BloodGroup:  string(d.BloodGroup),
		Lat:         lat,
		Lng:         lng,
		CompletedAt: d.CompletedAt,
		Status:      string(d.Status),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create donation: %w", err)
	}
	return nil
}

func (t *tx) RecordDeclaration(ctx context.Context, userID, requestID string, items []string) error {
	t.wrote = true
	row := declarationRow{
		ID:        uuid.NewString(),
		UserID:    userID,
		RequestID: requestID,
		Items:     declarationItems(items),
		CreatedAt: t.store.Now(),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record declaration: %w", err)
	}
	return nil
}
