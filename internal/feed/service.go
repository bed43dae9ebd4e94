// File: internal/feed/service.go
package feed

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/rules"
	"lifelink_backend/internal/store"
)

// Source is the read side of the store the feeds are built on.
type Source interface {
	store.UserRepository
	store.RequestRepository
}

// Service builds the read models the clients render, as one-shot queries and
// as live subscriptions.
type Service struct {
	src    Source
	cfg    *config.Config
	logger *zap.Logger
	policy rules.Policy
	now    func() time.Time
}

// NewService creates a new feed service.
func NewService(src Source, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		src:    src,
		cfg:    cfg,
		logger: logger.Named("feed"),
		policy: rules.DefaultPolicy,
		now:    time.Now,
	}
}

// activeQuery selects the requests a viewer may act on. Donors see pending
// and accepted requests, blood banks only pending ones.
func activeQuery(viewer *domain.User) store.RequestQuery {
	if viewer.Role == domain.RoleAdmin {
		return store.RequestQuery{Statuses: []domain.RequestStatus{domain.StatusPending}}
	}
	return store.RequestQuery{Statuses: []domain.RequestStatus{domain.StatusPending, domain.StatusAccepted}}
}

// activeView drops the viewer's own requests and orders the rest newest
// first.
func activeView(viewer *domain.User, reqs []domain.Request) []domain.Request {
	out := make([]domain.Request, 0, len(reqs))
	for _, r := range reqs {
		if r.PatientID == viewer.ID {
			continue
		}
		out = append(out, redact(viewer, r))
	}
	newestFirst(out)
	return out
}

func newestFirst(reqs []domain.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
}

// redact hides the pickup code from everyone but the requester and blood
// banks.
func redact(viewer *domain.User, r domain.Request) domain.Request {
	if viewer.ID != r.PatientID && viewer.Role != domain.RoleAdmin {
		r.PickupCode = ""
	}
	return r
}

func (s *Service) viewer(ctx context.Context, viewerID string) (*domain.User, error) {
	return s.src.GetUser(ctx, viewerID)
}

// ActiveRequests returns the open requests the viewer may respond to.
func (s *Service) ActiveRequests(ctx context.Context, viewerID string) ([]domain.Request, error) {
	v, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.src.ListRequests(ctx, activeQuery(v))
	if err != nil {
		return nil, err
	}
	return activeView(v, reqs), nil
}

// WatchActiveRequests streams ActiveRequests until the handle is called.
func (s *Service) WatchActiveRequests(ctx context.Context, viewerID string, fn func([]domain.Request, error)) (store.Unsubscribe, error) {
	v, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.src.WatchRequests(ctx, activeQuery(v), func(reqs []domain.Request, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(activeView(v, reqs), nil)
	})
}

func myQuery(viewerID string) store.RequestQuery {
	return store.RequestQuery{PatientID: viewerID}
}

// MyRequests returns every request the viewer raised, newest first.
func (s *Service) MyRequests(ctx context.Context, viewerID string) ([]domain.Request, error) {
	reqs, err := s.src.ListRequests(ctx, myQuery(viewerID))
	if err != nil {
		return nil, err
	}
	newestFirst(reqs)
	return reqs, nil
}

func (s *Service) WatchMyRequests(ctx context.Context, viewerID string, fn func([]domain.Request, error)) (store.Unsubscribe, error) {
	return s.src.WatchRequests(ctx, myQuery(viewerID), func(reqs []domain.Request, err error) {
		if err == nil {
			newestFirst(reqs)
		}
		fn(reqs, err)
	})
}

// RequestDetail returns one request as the viewer may see it.
func (s *Service) RequestDetail(ctx context.Context, viewerID, requestID string) (*domain.Request, error) {
	v, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	r, err := s.src.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	out := redact(v, *r)
	return &out, nil
}

func (s *Service) WatchRequestDetail(ctx context.Context, viewerID, requestID string, fn func(*domain.Request, error)) (store.Unsubscribe, error) {
	v, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.src.WatchRequest(ctx, requestID, func(r *domain.Request, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		out := redact(v, *r)
		fn(&out, nil)
	})
}

// canReadMessages admits the two parties of a request and blood banks.
func (s *Service) canReadMessages(ctx context.Context, viewerID, requestID string) error {
	r, err := s.src.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if r.IsParticipant(viewerID) {
		return nil
	}
	v, err := s.viewer(ctx, viewerID)
	if err != nil {
		return err
	}
	if v.Role == domain.RoleAdmin {
		return nil
	}
	return common.ErrForbidden.WithDetails("Only the parties of a request can read its messages.")
}

// Messages returns the chat of a request, oldest first.
func (s *Service) Messages(ctx context.Context, viewerID, requestID string) ([]domain.Message, error) {
	if err := s.canReadMessages(ctx, viewerID, requestID); err != nil {
		return nil, err
	}
	return s.src.ListMessages(ctx, requestID)
}

func (s *Service) WatchMessages(ctx context.Context, viewerID, requestID string, fn func([]domain.Message, error)) (store.Unsubscribe, error) {
	if err := s.canReadMessages(ctx, viewerID, requestID); err != nil {
		return nil, err
	}
	return s.src.WatchMessages(ctx, requestID, fn)
}

// DefaultLocation is where the donor feed measures from when the viewer's
// position cannot be resolved.
func (s *Service) DefaultLocation() domain.GeoPoint {
	return domain.GeoPoint{Lat: s.cfg.DefaultLat, Lng: s.cfg.DefaultLng}
}
