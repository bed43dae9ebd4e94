// File: internal/store/gormstore/store.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/common"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/store"
)

// ErrTxAborted is returned when a transaction keeps conflicting with
// concurrent writers after every attempt.
var ErrTxAborted = common.ErrConflict.WithDetails("The operation conflicted with concurrent updates. Please retry.")

// Store implements store.Store on a SQL database through GORM. Live
// subscriptions are served by re-running their query whenever a committed
// write touches the watched collection.
type Store struct {
	db          *gorm.DB
	broker      *changefeed.Broker
	logger      *zap.Logger
	maxAttempts int

	mu  sync.RWMutex
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a Store. The schema must already be migrated.
func New(db *gorm.DB, broker *changefeed.Broker, cfg *config.Config, logger *zap.Logger) *Store {
	attempts := cfg.TxMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Store{
		db:          db,
		broker:      broker,
		logger:      logger.Named("gormstore"),
		maxAttempts: attempts,
		now:         time.Now,
	}
}

// SetClock replaces the source of store-assigned timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Now returns the store's current time, truncated to microseconds so values
// survive a round trip through every supported database unchanged.
func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().UTC().Truncate(time.Microsecond)
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunInTransaction implements store.Transactor.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		t := &tx{store: s}
		err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			t.db = gtx
			return fn(ctx, t)
		})
		if err == nil {
			s.broker.Publish(t.events...)
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		s.logger.Warn("Transaction conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
		}
	}
	s.logger.Error("Transaction aborted", zap.Int("attempts", s.maxAttempts), zap.Error(lastErr))
	return fmt.Errorf("%w: %v", ErrTxAborted, lastErr)
}

// isRetryable reports whether err is a write conflict that a fresh attempt
// may resolve.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func notFound(kind, id string) error {
	return common.ErrNotFound.WithDetails(fmt.Sprintf("%s %s not found", kind, id))
}

// mapErr converts a missing row into common.ErrNotFound and wraps anything else.
func mapErr(err error, op, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(kind, id)
	}
	return fmt.Errorf("%s %s: %w", op, kind, err)
}
