// File: internal/platform/elasticsearch/client.go
package elasticsearch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"lifelink_backend/internal/config"
)

// ESClientWrapper wraps the elasticsearch.Client.
// This can help Wire disambiguate types, especially from external modules.
type ESClientWrapper struct {
	*elasticsearch.Client
}

// ZapLogger is an adapter from zap.Logger to elastictransport.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

var _ elastictransport.Logger = (*ZapLogger)(nil)

// LogRoundTrip prints the request-response metrics.
func (l *ZapLogger) LogRoundTrip(req *http.Request, res *http.Response, err error, start time.Time, dur time.Duration) error {
	var statusCode int
	if res != nil {
		statusCode = res.StatusCode
	}
	l.logger.Debug("Elasticsearch RoundTrip",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", dur),
		zap.Error(err),
	)
	return nil
}

// RequestBodyEnabled makes the client pass a copy of request body to the logger.
func (l *ZapLogger) RequestBodyEnabled() bool { return false }

// ResponseBodyEnabled makes the client pass a copy of response body to the logger.
func (l *ZapLogger) ResponseBodyEnabled() bool { return false }

// NewClient creates and returns a new Elasticsearch client wrapper. An empty
// ELASTICSEARCH_URL returns a nil wrapper and no error: search then falls
// back to the store.
func NewClient(cfg *config.Config, logger *zap.Logger) (*ESClientWrapper, error) {
	if cfg.ElasticsearchURL == "" {
		logger.Info("ELASTICSEARCH_URL is not set, donor directory search uses the store")
		return nil, nil
	}

	retryBackoff := func(i int) time.Duration {
		return time.Duration(i) * 100 * time.Millisecond
	}

	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ElasticsearchURL},
		Logger:    &ZapLogger{logger: logger.Named("elasticsearch_client")},
		// Retry on 429 TooManyRequests and the gateway errors.
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff:  retryBackoff,
		MaxRetries:    5,
	}

	esClient, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		logger.Error("Error creating Elasticsearch client", zap.Error(err))
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}

	res, err := esClient.Info()
	if err != nil {
		logger.Error("Error pinging Elasticsearch", zap.Error(err))
		return nil, fmt.Errorf("esClient.Info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		logger.Error("Elasticsearch client initialization error", zap.String("status", res.Status()), zap.Any("error_details", errorBody(res)))
		return nil, fmt.Errorf("elasticsearch client initialization error: %s", res.Status())
	}

	logger.Info("Elasticsearch client initialized and connected successfully", zap.String("url", cfg.ElasticsearchURL), zap.String("es_version", elasticsearch.Version))
	return &ESClientWrapper{Client: esClient}, nil
}

// errorBody decodes the JSON error of a failed response for logging.
func errorBody(res *esapi.Response) map[string]interface{} {
	var body map[string]interface{}
	if res == nil || res.Body == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return map[string]interface{}{"decode_error": err.Error()}
	}
	return body
}

// ResponseError turns a failed response into an error carrying its status
// and the server's error details.
func ResponseError(op string, res *esapi.Response) error {
	return fmt.Errorf("%s: status %s: %v", op, res.Status(), errorBody(res))
}
