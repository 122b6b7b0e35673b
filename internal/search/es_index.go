package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qa-service/internal/client"
	"qa-service/internal/models"
)

var questionMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":               map[string]string{"type": "keyword"},
			"user_id":          map[string]string{"type": "keyword"},
			"question_text":    map[string]string{"type": "text"},
			"subject":          map[string]string{"type": "text"},
			"topic":            map[string]string{"type": "text"},
			"difficulty_level": map[string]string{"type": "keyword"},
			"grade_level":      map[string]string{"type": "keyword"},
			"status":           map[string]string{"type": "keyword"},
			"answer":           map[string]string{"type": "text", "index": "false"},
			"created_at":       map[string]string{"type": "date"},
			"updated_at":       map[string]string{"type": "date"},
		},
	},
}

// ESIndex mirrors questions into Elasticsearch for per-user search.
type ESIndex struct {
	es    *client.ESClient
	index string
}

func NewESIndex(es *client.ESClient, index string) *ESIndex {
	return &ESIndex{es: es, index: index}
}

// EnsureIndex creates the question index with its mapping when missing.
func (i *ESIndex) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Client.Indices.Exists([]string{i.index}, i.es.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(questionMapping)
	if err != nil {
		return err
	}
	res, err = i.es.Client.Indices.Create(i.index,
		i.es.Client.Indices.Create.WithContext(ctx),
		i.es.Client.Indices.Create.WithBody(body))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return i.es.ParseResponse(res, nil)
}

func (i *ESIndex) IndexQuestion(ctx context.Context, q *models.Question) error {
	res, err := i.es.IndexDocument(ctx, i.index, q.ID, q)
	if err != nil {
		return err
	}
	return i.es.ParseResponse(res, nil)
}

// SearchQuestions matches subject, topic or text for one user, newest first.
func (i *ESIndex) SearchQuestions(ctx context.Context, userID, query string) ([]*models.Question, error) {
	res, err := i.es.Search(ctx, i.index, buildSearchQuery(userID, query))
	if err != nil {
		return nil, err
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source models.Question `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := i.es.ParseResponse(res, &body); err != nil {
		return nil, err
	}

	out := make([]*models.Question, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		q := hit.Source
		out = append(out, &q)
	}
	return out, nil
}

// DeleteQuestionsCreatedBefore drops documents for questions the retention
// sweep removed from the store.
func (i *ESIndex) DeleteQuestionsCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := i.es.DeleteByQuery(ctx, i.index, buildRetentionQuery(cutoff))
	if err != nil {
		return 0, err
	}

	var body struct {
		Deleted int `json:"deleted"`
	}
	if err := i.es.ParseResponse(res, &body); err != nil {
		return 0, err
	}
	return body.Deleted, nil
}

func buildRetentionQuery(cutoff time.Time) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"created_at": map[string]string{"lt": cutoff.UTC().Format(time.RFC3339Nano)},
			},
		},
	}
}

func buildSearchQuery(userID, query string) map[string]interface{} {
	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"user_id": userID}},
	}
	boolQuery := map[string]interface{}{"filter": filter}

	if q := strings.TrimSpace(query); q != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":          q,
					"fields":         []string{"subject^2", "topic^2", "question_text"},
					"type":           "phrase_prefix",
					"lenient":        true,
					"max_expansions": 50,
				},
			},
		}
	}

	return map[string]interface{}{
		"size":  100,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"created_at": map[string]string{"order": "desc"}}},
	}
}

func encode(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("error encoding body: %w", err)
	}
	return &buf, nil
}
