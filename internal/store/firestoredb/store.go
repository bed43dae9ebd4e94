// File: internal/store/firestoredb/store.go
package firestoredb

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/store"
)

// ErrTxAborted is returned when Firestore gives up on a transaction after
// every attempt conflicted.
var ErrTxAborted = common.ErrConflict.WithDetails("The operation conflicted with concurrent updates. Please retry.")

// Client implements store.Store on Cloud Firestore.
type Client struct {
	fs          *firestore.Client
	logger      *zap.Logger
	maxAttempts int
}

var _ store.Store = (*Client)(nil)

// New wraps an open Firestore client. Close releases it.
func New(fs *firestore.Client, cfg *config.Config, logger *zap.Logger) *Client {
	attempts := cfg.TxMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		fs:          fs,
		logger:      logger.Named("firestore"),
		maxAttempts: attempts,
	}
}

// Close releases the underlying Firestore client.
func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) users() *firestore.CollectionRef {
	return c.fs.Collection(usersCollection)
}

func (c *Client) requests() *firestore.CollectionRef {
	return c.fs.Collection(requestsCollection)
}

// RunInTransaction implements store.Transactor with Firestore's optimistic
// transactions. Firestore itself retries on contention and rejects reads
// issued after a write.
func (c *Client) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var fnErr error
	err := c.fs.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		fnErr = fn(ctx, &tx{c: c, ftx: ftx, reads: make(map[string]*stockView)})
		return fnErr
	}, firestore.MaxAttempts(c.maxAttempts))
	if err == nil {
		return nil
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return fnErr
	}
	if status.Code(err) == codes.Aborted {
		c.logger.Error("Transaction aborted", zap.Int("attempts", c.maxAttempts), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTxAborted, err)
	}
	return mapErr(err, "transaction", "", "")
}

func notFound(kind, id string) error {
	return common.ErrNotFound.WithDetails(fmt.Sprintf("%s %s not found", kind, id))
}

// mapErr translates Firestore status codes into the API error vocabulary.
// Errors that already are API errors pass through.
func mapErr(err error, op, kind, id string) error {
	if err == nil {
		return nil
	}
	if _, ok := common.IsAPIError(err); ok {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return notFound(kind, id)
	case codes.PermissionDenied:
		return common.ErrForbidden.WithDetails(fmt.Sprintf("%s %s: permission denied", op, kind))
	case codes.Aborted:
		return fmt.Errorf("%w: %v", ErrTxAborted, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", common.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, kind, err)
}
