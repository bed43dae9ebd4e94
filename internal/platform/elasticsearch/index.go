// File: internal/platform/elasticsearch/index.go
package elasticsearch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"
)

// UsersMapping is the mapping of the user profile index.
func UsersMapping() map[string]interface{} {
	keywordSub := map[string]interface{}{
		"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"email":                     map[string]interface{}{"type": "text", "fields": keywordSub},
				"display_name":              map[string]interface{}{"type": "text", "fields": keywordSub},
				"phone_number":              map[string]interface{}{"type": "keyword"},
				"role":                      map[string]interface{}{"type": "keyword"},
				"blood_group":               map[string]interface{}{"type": "keyword"},
				"gender":                    map[string]interface{}{"type": "keyword"},
				"age":                       map[string]interface{}{"type": "integer"},
				"weight":                    map[string]interface{}{"type": "double"},
				"is_available":              map[string]interface{}{"type": "boolean"},
				"is_verified":               map[string]interface{}{"type": "boolean"},
				"verification_status":       map[string]interface{}{"type": "keyword"},
				"verification_requested_at": map[string]interface{}{"type": "date"},
				"lives_saved":               map[string]interface{}{"type": "integer"},
				"center_slug":               map[string]interface{}{"type": "keyword"},
				"location":                  map[string]interface{}{"type": "geo_point"},
				"updated_at":                map[string]interface{}{"type": "date"},
			},
		},
	}
}

// CreateIndexIfNotExists creates index with mapping if it does not already
// exist.
func CreateIndexIfNotExists(ctx context.Context, client *ESClientWrapper, index string, mapping map[string]interface{}, logger *zap.Logger) error {
	log := logger.Named("elasticsearch_index_setup").With(zap.String("index_name", index))

	req := esapi.IndicesExistsRequest{Index: []string{index}}
	res, err := req.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error checking if index exists", zap.Error(err))
		return fmt.Errorf("error checking if index %s exists: %w", index, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Info("Index already exists")
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Error("Error checking if index exists, unexpected status", zap.String("status", res.Status()))
		return fmt.Errorf("error checking if index %s exists: status %s", index, res.Status())
	}

	createReq := esapi.IndicesCreateRequest{
		Index: index,
		Body:  esutil.NewJSONReader(mapping),
	}
	createRes, err := createReq.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error creating index", zap.Error(err))
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		err := ResponseError("create index "+index, createRes)
		log.Error("Failed to create index", zap.Error(err))
		return err
	}

	log.Info("Index created successfully")
	return nil
}
