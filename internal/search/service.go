// File: internal/search/service.go
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/domain"
	platformes "lifelink_backend/internal/platform/elasticsearch"
	"lifelink_backend/internal/store"
)

// Query filters the user directory. Zero values do not filter.
type Query struct {
	Text               string                    `form:"q"`
	Role               domain.Role               `form:"role" binding:"omitempty,oneof=donor patient admin"`
	VerificationStatus domain.VerificationStatus `form:"verification_status" binding:"omitempty,oneof=requested verified rejected"`
	BloodGroup         domain.BloodGroup         `form:"blood_group" binding:"omitempty,bloodgroup"`
	Page               int                       `form:"page"`
	PageSize           int                       `form:"page_size"`
}

func (q *Query) normalize() {
	pq := common.PaginationQuery{Page: q.Page, PageSize: q.PageSize}
	pq.Offset()
	q.Page, q.PageSize = pq.Page, pq.Limit()
}

// UserLister is the store read the directory falls back on.
type UserLister interface {
	ListUsers(ctx context.Context, q store.UserQuery) ([]domain.User, error)
}

// Service keeps the user directory index and queries it. Without an
// Elasticsearch client every query is answered from the store.
type Service struct {
	es     *platformes.ESClientWrapper
	index  string
	users  UserLister
	logger *zap.Logger
}

// NewService creates a new directory search service. es may be nil.
func NewService(es *platformes.ESClientWrapper, users UserLister, cfg *config.Config, logger *zap.Logger) *Service {
	index := cfg.ElasticsearchIndex
	if index == "" {
		index = "users"
	}
	return &Service{es: es, index: index, users: users, logger: logger.Named("search")}
}

// Enabled reports whether an index backs the directory.
func (s *Service) Enabled() bool {
	return s.es != nil
}

// EnsureIndex creates the directory index when it is missing.
func (s *Service) EnsureIndex(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return platformes.CreateIndexIfNotExists(ctx, s.es, s.index, platformes.UsersMapping(), s.logger)
}

// IndexUser writes the profile's document, replacing any previous version.
func (s *Service) IndexUser(ctx context.Context, u *domain.User) error {
	if !s.Enabled() {
		return nil
	}
	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: u.ID,
		Body:       esutil.NewJSONReader(DocumentFor(u)),
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return fmt.Errorf("index user %s: %w", u.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return platformes.ResponseError("index user "+u.ID, res)
	}
	return nil
}

// buildQuery translates q to an Elasticsearch bool query.
func buildQuery(q Query) map[string]interface{} {
	var must []interface{}
	var filter []interface{}

	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"display_name^2", "email", "phone_number", "center_slug"},
				"type":   "bool_prefix",
			},
		})
	}
	term := func(field, value string) {
		if value != "" {
			filter = append(filter, map[string]interface{}{"term": map[string]interface{}{field: value}})
		}
	}
	term("role", string(q.Role))
	term("verification_status", string(q.VerificationStatus))
	term("blood_group", string(q.BloodGroup))

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(boolQuery) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{"bool": boolQuery}
}

func searchBody(q Query) map[string]interface{} {
	return map[string]interface{}{
		"query": buildQuery(q),
		"from":  (q.Page - 1) * q.PageSize,
		"size":  q.PageSize,
		"sort": []interface{}{
			map[string]interface{}{"verification_requested_at": map[string]interface{}{"order": "desc", "missing": "_last"}},
			map[string]interface{}{"display_name.keyword": map[string]interface{}{"order": "asc"}},
		},
		"track_total_hits": true,
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchUsers queries the directory. When the index is unavailable the
// store answers instead.
func (s *Service) SearchUsers(ctx context.Context, q Query) ([]Document, *common.Pagination, error) {
	q.normalize()
	if s.Enabled() {
		docs, total, err := s.searchIndex(ctx, q)
		if err == nil {
			return docs, common.NewPagination(total, q.Page, q.PageSize), nil
		}
		s.logger.Warn("Directory search failed, falling back to store", zap.Error(err))
	}
	return s.searchStore(ctx, q)
}

func (s *Service) searchIndex(ctx context.Context, q Query) ([]Document, int64, error) {
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(esutil.NewJSONReader(searchBody(q))),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, platformes.ResponseError("search users", res)
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}
	docs := make([]Document, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, body.Hits.Total.Value, nil
}

func (s *Service) searchStore(ctx context.Context, q Query) ([]Document, *common.Pagination, error) {
	users, err := s.users.ListUsers(ctx, store.UserQuery{Role: q.Role, VerificationStatus: q.VerificationStatus})
	if err != nil {
		return nil, nil, err
	}

	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.Text))
	docs := make([]Document, 0, len(users))
	for i := range users {
		u := &users[i]
		if q.BloodGroup != "" && u.BloodGroup != q.BloodGroup {
			continue
		}
		doc := DocumentFor(u)
		if needle != "" && !matchesText(fold, needle, doc) {
			continue
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		ri, rj := docs[i].VerificationRequestedAt, docs[j].VerificationRequestedAt
		switch {
		case ri != nil && rj != nil && !ri.Equal(*rj):
			return ri.After(*rj)
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		}
		return docs[i].DisplayName < docs[j].DisplayName
	})

	total := int64(len(docs))
	from := (q.Page - 1) * q.PageSize
	if from < 0 || from > len(docs) {
		from = len(docs)
	}
	to := from + q.PageSize
	if to > len(docs) {
		to = len(docs)
	}
	return docs[from:to], common.NewPagination(total, q.Page, q.PageSize), nil
}

func matchesText(fold cases.Caser, needle string, doc Document) bool {
	for _, field := range []string{doc.DisplayName, doc.Email, doc.PhoneNumber, doc.CenterSlug} {
		if strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

// SyncUsers re-indexes every profile in batches through the bulk API and
// returns how many documents were written.
func (s *Service) SyncUsers(ctx context.Context, batchSize int, refresh string) (int, error) {
	if !s.Enabled() {
		return 0, errors.New("elasticsearch is not configured")
	}
	if batchSize < 1 {
		batchSize = 100
	}
	if err := s.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	users, err := s.users.ListUsers(ctx, store.UserQuery{})
	if err != nil {
		return 0, fmt.Errorf("list users for sync: %w", err)
	}
	s.logger.Info("Starting user synchronization to Elasticsearch", zap.Int("users", len(users)), zap.Int("batchSize", batchSize))

	synced, failed := 0, 0
	for start := 0; start < len(users); start += batchSize {
		end := start + batchSize
		if end > len(users) {
			end = len(users)
		}
		ok, bad, err := s.bulkIndex(ctx, users[start:end], refresh)
		if err != nil {
			s.logger.Error("Bulk request failed", zap.Int("batchStart", start), zap.Error(err))
			failed += end - start
			continue
		}
		synced += ok
		failed += bad
		s.logger.Info("Batch processed", zap.Int("batchStart", start), zap.Int("synced", ok), zap.Int("failed", bad))
	}

	s.logger.Info("User synchronization finished", zap.Int("synced", synced), zap.Int("failed", failed))
	if failed > 0 {
		return synced, fmt.Errorf("%d users failed to sync", failed)
	}
	return synced, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string                 `json:"_id"`
			Status int                    `json:"status"`
			Error  map[string]interface{} `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

func (s *Service) bulkIndex(ctx context.Context, users []domain.User, refresh string) (int, int, error) {
	var body strings.Builder
	enc := json.NewEncoder(&body)
	for i := range users {
		action := map[string]interface{}{"index": map[string]interface{}{"_index": s.index, "_id": users[i].ID}}
		if err := enc.Encode(action); err != nil {
			return 0, 0, err
		}
		if err := enc.Encode(DocumentFor(&users[i])); err != nil {
			return 0, 0, err
		}
	}

	req := esapi.BulkRequest{
		Body:    strings.NewReader(body.String()),
		Refresh: refresh,
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return 0, 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, 0, platformes.ResponseError("bulk index users", res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, 0, fmt.Errorf("decode bulk response: %w", err)
	}
	ok, bad := 0, 0
	for _, item := range parsed.Items {
		if item.Index.Error != nil {
			s.logger.Error("Failed to index user in bulk batch",
				zap.String("userID", item.Index.ID),
				zap.Any("error", item.Index.Error),
				zap.Int("status", item.Index.Status),
			)
			bad++
			continue
		}
		ok++
	}
	return ok, bad, nil
}
