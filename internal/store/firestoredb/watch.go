// File: internal/store/firestoredb/watch.go
package firestoredb

import (
	"context"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// listen calls next in a loop on its own goroutine, each call feeding one
// snapshot to the listener, until it fails or ctx ends. stop releases the
// iterator.
func (c *Client) listen(ctx context.Context, name string, next func() error, stop func()) {
	go func() {
		defer stop()
		for {
			if err := next(); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("Snapshot listener stopped", zap.String("listener", name), zap.Error(err))
				}
				return
			}
		}
	}()
}

func (c *Client) watchDoc(ctx context.Context, ref *firestore.DocumentRef, kind string, deliver func(*firestore.DocumentSnapshot, error)) store.Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	it := ref.Snapshots(ctx)
	c.listen(ctx, kind+"/"+ref.ID, func() error {
		snap, err := it.Next()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			deliver(nil, mapErr(err, "watch", kind, ref.ID))
			return err
		}
		if !snap.Exists() {
			deliver(nil, notFound(kind, ref.ID))
			return nil
		}
		deliver(snap, nil)
		return nil
	}, it.Stop)
	return store.Unsubscribe(cancel)
}

func (c *Client) watchQuery(ctx context.Context, q firestore.Query, name string, deliver func(*firestore.DocumentIterator, error)) store.Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(ctx)
	c.listen(ctx, name, func() error {
		snap, err := it.Next()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			deliver(nil, mapErr(err, "watch", name, ""))
			return err
		}
		deliver(snap.Documents, nil)
		return nil
	}, it.Stop)
	return store.Unsubscribe(cancel)
}

// WatchUser implements store.UserRepository.
func (c *Client) WatchUser(ctx context.Context, id string, fn func(*domain.User, error)) (store.Unsubscribe, error) {
	return c.watchDoc(ctx, c.users().Doc(id), "user", func(snap *firestore.DocumentSnapshot, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeUser(snap))
	}), nil
}

// WatchUsers implements store.UserRepository.
func (c *Client) WatchUsers(ctx context.Context, q store.UserQuery, fn func([]domain.User, error)) (store.Unsubscribe, error) {
	return c.watchQuery(ctx, c.userQuery(q), "users", func(it *firestore.DocumentIterator, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(collectUsers(it))
	}), nil
}

// WatchRequest implements store.RequestRepository.
func (c *Client) WatchRequest(ctx context.Context, id string, fn func(*domain.Request, error)) (store.Unsubscribe, error) {
	return c.watchDoc(ctx, c.requests().Doc(id), "request", func(snap *firestore.DocumentSnapshot, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeRequest(snap))
	}), nil
}

// WatchRequests implements store.RequestRepository.
func (c *Client) WatchRequests(ctx context.Context, q store.RequestQuery, fn func([]domain.Request, error)) (store.Unsubscribe, error) {
	return c.watchQuery(ctx, c.requestQuery(q), "requests", func(it *firestore.DocumentIterator, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(collectRequests(it))
	}), nil
}

// WatchMessages implements store.RequestRepository.
func (c *Client) WatchMessages(ctx context.Context, requestID string, fn func([]domain.Message, error)) (store.Unsubscribe, error) {
	return c.watchQuery(ctx, c.messageQuery(requestID), "messages", func(it *firestore.DocumentIterator, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(collectMessages(it, requestID))
	}), nil
}
