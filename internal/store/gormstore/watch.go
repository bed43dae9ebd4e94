// File: internal/store/gormstore/watch.go
package gormstore

import (
	"context"

	"go.uber.org/zap"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// watch delivers load's result to fn once immediately and again after every
// wake-up on topic, until the returned handle is called or ctx ends. Calls to
// fn are serialized on one goroutine.
func watch[T any](ctx context.Context, s *Store, topic string, load func(context.Context) (T, error), fn func(T, error)) (store.Unsubscribe, error) {
	sub := s.broker.Subscribe(topic)
	ctx, cancel := context.WithCancel(ctx)

	deliver := func() {
		v, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		fn(v, err)
	}

	go func() {
		defer sub.Close()
		deliver()
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Subscription closed", zap.String("topic", topic))
				return
			case <-sub.C:
				deliver()
			}
		}
	}()

	return store.Unsubscribe(cancel), nil
}

// WatchUser implements store.UserRepository.
func (s *Store) WatchUser(ctx context.Context, id string, fn func(*domain.User, error)) (store.Unsubscribe, error) {
	return watch(ctx, s, changefeed.TopicUsers, func(ctx context.Context) (*domain.User, error) {
		return s.GetUser(ctx, id)
	}, fn)
}

// WatchUsers implements store.UserRepository.
func (s *Store) WatchUsers(ctx context.Context, q store.UserQuery, fn func([]domain.User, error)) (store.Unsubscribe, error) {
	return watch(ctx, s, changefeed.TopicUsers, func(ctx context.Context) ([]domain.User, error) {
		return s.ListUsers(ctx, q)
	}, fn)
}

// WatchRequest implements store.RequestRepository.
func (s *Store) WatchRequest(ctx context.Context, id string, fn func(*domain.Request, error)) (store.Unsubscribe, error) {
	return watch(ctx, s, changefeed.TopicRequests, func(ctx context.Context) (*domain.Request, error) {
		return s.GetRequest(ctx, id)
	}, fn)
}

// WatchRequests implements store.RequestRepository.
func (s *Store) WatchRequests(ctx context.Context, q store.RequestQuery, fn func([]domain.Request, error)) (store.Unsubscribe, error) {
	return watch(ctx, s, changefeed.TopicRequests, func(ctx context.Context) ([]domain.Request, error) {
		return s.ListRequests(ctx, q)
	}, fn)
}

// WatchMessages implements store.RequestRepository.
func (s *Store) WatchMessages(ctx context.Context, requestID string, fn func([]domain.Message, error)) (store.Unsubscribe, error) {
	return watch(ctx, s, changefeed.TopicMessages, func(ctx context.Context) ([]domain.Message, error) {
		return s.ListMessages(ctx, requestID)
	}, fn)
}
