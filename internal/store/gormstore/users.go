// File: internal/store/gormstore/users.go
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(s.db.WithContext(ctx), id)
}

func getUser(db *gorm.DB, id string) (*domain.User, error) {
	var row userRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "get", "user", id)
	}
	stocks, err := loadStocks(db, []string{id})
	if err != nil {
		return nil, err
	}
	u := row.toDomain(stocks[id])
	return &u, nil
}

func loadStocks(db *gorm.DB, userIDs []string) (map[string][]stockRow, error) {
	var rows []stockRow
	if err := db.Where("user_id IN ?", userIDs).Order("blood_group").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load blood stock: %w", err)
	}
	out := make(map[string][]stockRow)
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], r)
	}
	return out, nil
}

func setStock(db *gorm.DB, userID string, stock domain.Stock) error {
	if len(stock) == 0 {
		return nil
	}
	rows := make([]stockRow, 0, len(stock))
	for g, units := range stock {
		rows = append(rows, stockRow{UserID: userID, BloodGroup: string(g), Units: units})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "blood_group"}},
		DoUpdates: clause.AssignmentColumns([]string{"units"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("set blood stock: %w", err)
	}
	return nil
}

// CreateUser implements store.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	now := s.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	row := newUserRow(user)

	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if err := gtx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := gtx.Where("user_id = ?", user.ID).Delete(&stockRow{}).Error; err != nil {
			return fmt.Errorf("reset blood stock: %w", err)
		}
		return setStock(gtx, user.ID, user.BloodStock)
	})
	if err != nil {
		return err
	}
	s.broker.Publish(changefeed.Event{Topic: changefeed.TopicUsers, Key: user.ID})
	return nil
}

// UpdateUser implements store.UserRepository.
func (s *Store) UpdateUser(ctx context.Context, id string, patch store.UserPatch) error {
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return updateUser(gtx, id, patch, s.Now())
	})
	if err != nil {
		return err
	}
	s.broker.Publish(changefeed.Event{Topic: changefeed.TopicUsers, Key: id})
	return nil
}

func updateUser(db *gorm.DB, id string, patch store.UserPatch, now time.Time) error {
	res := db.Model(&userRow{}).Where("id = ?", id).Updates(userUpdates(patch, now))
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("user", id)
	}
	return setStock(db, id, patch.BloodStock)
}

// MergeUser implements store.UserRepository.
func (s *Store) MergeUser(ctx context.Context, id string, patch store.UserPatch) error {
	now := s.Now()
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		var count int64
		if err := gtx.Model(&userRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("merge user: %w", err)
		}
		if count > 0 {
			return updateUser(gtx, id, patch, now)
		}
		row := applyUserPatch(id, patch, now)
		if err := gtx.Create(&row).Error; err != nil {
			return fmt.Errorf("merge user: %w", err)
		}
		return setStock(gtx, id, patch.BloodStock)
	})
	if err != nil {
		return err
	}
	s.broker.Publish(changefeed.Event{Topic: changefeed.TopicUsers, Key: id})
	return nil
}

// ListUsers implements store.UserRepository.
func (s *Store) ListUsers(ctx context.Context, q store.UserQuery) ([]domain.User, error) {
	db := s.db.WithContext(ctx).Model(&userRow{})
	if q.Role != domain.RoleUnset {
		db = db.Where("role = ?", string(q.Role))
	}
	if q.AvailableOnly {
		db = db.Where("is_available = ?", true)
	}
	if q.VerificationStatus != domain.VerificationUnset {
		db = db.Where("verification_status = ?", string(q.VerificationStatus))
	}

	var rows []userRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(rows) == 0 {
		return []domain.User{}, nil
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	stocks, err := loadStocks(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toDomain(stocks[rows[i].ID])
	}
	return users, nil
}

// ListDonations implements store.UserRepository.
func (s *Store) ListDonations(ctx context.Context, donorID string) ([]domain.Donation, error) {
	var rows []donationRow
	err := s.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("completed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	out := make([]domain.Donation, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}
