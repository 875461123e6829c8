package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
)

const (
	DefaultSearchSize = 20
	MaxSearchSize     = 100
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "title":          {"type": "text"},
      "body":           {"type": "text"},
      "type":           {"type": "keyword"},
      "status":         {"type": "keyword"},
      "source":         {"type": "keyword"},
      "error":          {"type": "text"},
      "sentAt":         {"type": "date"},
      "processedAt":    {"type": "date"},
      "recipientCount": {"type": "integer"},
      "successCount":   {"type": "integer"},
      "failureCount":   {"type": "integer"}
    }
  }
}`

// Document is the searchable projection of a terminal record.
type Document struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Body           string        `json:"body"`
	Type           string        `json:"type"`
	Status         models.Status `json:"status"`
	Source         string        `json:"source,omitempty"`
	Error          string        `json:"error,omitempty"`
	SentAt         time.Time     `json:"sentAt"`
	ProcessedAt    *time.Time    `json:"processedAt,omitempty"`
	RecipientCount int           `json:"recipientCount"`
	SuccessCount   int           `json:"successCount"`
	FailureCount   int           `json:"failureCount"`
}

func documentFrom(rec *models.NotificationRecord) Document {
	return Document{
		ID:             rec.ID,
		Title:          rec.Title,
		Body:           rec.Body,
		Type:           rec.TypeOrDefault(),
		Status:         rec.Status,
		Source:         rec.Source,
		Error:          rec.Error,
		SentAt:         rec.SentAt,
		ProcessedAt:    rec.ProcessedAt,
		RecipientCount: rec.RecipientCount,
		SuccessCount:   rec.SuccessCount,
		FailureCount:   rec.FailureCount,
	}
}

// Query filters a history search. Empty fields match everything.
type Query struct {
	Text string
	Type string
	Size int
}

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "history", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (x *Index) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: x.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index: %s", res.String())
	}
	x.logger.Info("history index created", nil)
	return nil
}

// Put indexes rec under its id, replacing any earlier version.
func (x *Index) Put(ctx context.Context, rec *models.NotificationRecord) error {
	body, err := json.Marshal(documentFrom(rec))
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document: %s", res.String())
	}
	return nil
}

// Search returns matching documents, newest processed first.
func (x *Index) Search(ctx context.Context, q Query) ([]Document, error) {
	size := q.Size
	if size <= 0 {
		size = DefaultSearchSize
	}
	if size > MaxSearchSize {
		size = MaxSearchSize
	}

	body, err := json.Marshal(buildSearch(q))
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}.Do(ctx, x.client)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search history: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]Document, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

// Delete removes the given ids from the index and returns how many were
// deleted. Ids that were never indexed are ignored.
func (x *Index) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"ids": map[string]interface{}{"values": ids},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("encode delete query: %w", err)
	}

	res, err := esapi.DeleteByQueryRequest{
		Index:     []string{x.index},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}.Do(ctx, x.client)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("delete history: %s", res.String())
	}

	var r struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return r.Deleted, nil
}

func buildSearch(q Query) map[string]interface{} {
	var must, filter []interface{}
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"title^2", "body"},
			},
		})
	}
	if typ := strings.TrimSpace(q.Type); typ != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"type": typ},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(boolQuery) > 0 {
		query = map[string]interface{}{"bool": boolQuery}
	}

	return map[string]interface{}{
		"query": query,
		"sort": []interface{}{
			map[string]interface{}{"processedAt": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
			map[string]interface{}{"sentAt": map[string]interface{}{"order": "desc"}},
		},
	}
}
