// File: internal/store/gormstore/requests.go
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// CreateRequest implements store.RequestRepository.
func (s *Store) CreateRequest(ctx context.Context, req *domain.Request) error {
	now := s.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = domain.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	lat, lng := coords(req.Location)
	row := requestRow{
		ID:          req.ID,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		BloodGroup:  string(req.BloodGroup),
		Urgency:     string(req.Urgency),
		Hospital:    req.Hospital,
		Notes:       req.Notes,
		Status:      string(req.Status),
		Lat:         lat,
		Lng:         lng,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.broker.Publish(changefeed.Event{Topic: changefeed.TopicRequests, Key: req.ID})
	return nil
}

// GetRequest implements store.RequestRepository.
func (s *Store) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	return getRequest(s.db.WithContext(ctx), id)
}

func getRequest(db *gorm.DB, id string) (*domain.Request, error) {
	var row requestRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "get", "request", id)
	}
	req := row.toDomain()
	return &req, nil
}

// UpdateRequest implements store.RequestRepository.
func (s *Store) UpdateRequest(ctx context.Context, id string, patch store.RequestPatch) error {
	if err := updateRequest(s.db.WithContext(ctx), id, patch, s.Now()); err != nil {
		return err
	}
	s.broker.Publish(changefeed.Event{Topic: changefeed.TopicRequests, Key: id})
	return nil
}

func updateRequest(db *gorm.DB, id string, patch store.RequestPatch, now time.Time) error {
	res := db.Model(&requestRow{}).Where("id = ?", id).Updates(requestUpdates(patch, now))
	if res.Error != nil {
		return fmt.Errorf("update request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("request", id)
	}
	return nil
}

// ListRequests implements store.RequestRepository.
func (s *Store) ListRequests(ctx context.Context, q store.RequestQuery) ([]domain.Request, error) {
	db := s.db.WithContext(ctx).Model(&requestRow{})
	if q.PatientID != "" {
		db = db.Where("patient_id = ?", q.PatientID)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		db = db.Where("status IN ?", statuses)
	}
	if q.CreatedBefore != nil {
		db = db.Where("created_at < ?", q.CreatedBefore.UTC())
	}

	var rows []requestRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]domain.Request, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// AddMessage implements store.RequestRepository.
func (s *Store) AddMessage(ctx context.Context, requestID string, msg *domain.Message) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&requestRow{}).Where("id = ?", requestID).Count(&count).Error; err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	if count == 0 {
		return notFound("request", requestID)
	}

	msg.ID = uuid.NewString()
	msg.RequestID = requestID
	msg.CreatedAt = s.Now()
	if msg.Type == "" {
		msg.Type = domain.MessageText
	}

	lat, lng := coords(msg.Location)
	row := messageRow{
		ID:         msg.ID,
		RequestID:  requestID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		Type:       string(msg.Type),
		Lat:        lat,
		Lng:        lng,
		PickupCode: msg.PickupCode,
		CreatedAt:  msg.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	s.broker.Publish(changefeed.Event{Topic: changefeed.TopicMessages, Key: requestID})
	return nil
}

// ListMessages implements store.RequestRepository.
func (s *Store) ListMessages(ctx context.Context, requestID string) ([]domain.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}
