package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"qa-service/internal/client"
	"qa-service/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	exists   bool
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodHead {
		if f.exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	if f.respond != nil {
		f.respond(w, r)
		return
	}
	_, _ = w.Write([]byte(`{"acknowledged":true}`))
}

func newIndex(t *testing.T, fake *fakeES) *ESIndex {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return NewESIndex(&client.ESClient{Client: es}, "questions")
}

func TestEnsureIndexCreatesWhenMissing(t *testing.T) {
	fake := &fakeES{}
	idx := newIndex(t, fake)

	if err := idx.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(fake.requests) != 2 || fake.requests[1] != "PUT /questions" {
		t.Fatalf("unexpected requests: %v", fake.requests)
	}
	if !strings.Contains(fake.bodies[1], `"user_id":{"type":"keyword"}`) {
		t.Fatalf("mapping not sent: %s", fake.bodies[1])
	}
}

func TestEnsureIndexSkipsExisting(t *testing.T) {
	fake := &fakeES{exists: true}
	idx := newIndex(t, fake)

	if err := idx.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected only the exists check, got %v", fake.requests)
	}
}

func TestSearchQuestionsFiltersByUser(t *testing.T) {
	fake := &fakeES{respond: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{
			"id":"q1","user_id":"u1","question_text":"What is force?","subject":"Physics",
			"topic":"Mechanics","difficulty_level":"Intermediate","grade_level":"11th-12th grade",
			"status":"pending","created_at":"2024-01-16T14:20:00Z","updated_at":"2024-01-16T14:20:00Z"}}]}}`))
	}}
	idx := newIndex(t, fake)

	got, err := idx.SearchQuestions(context.Background(), "u1", "mech")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "Mechanics" || got[0].Status != models.StatusPending {
		t.Fatalf("unexpected results: %+v", got)
	}

	var sent map[string]interface{}
	if err := json.Unmarshal([]byte(fake.bodies[0]), &sent); err != nil {
		t.Fatalf("decode query: %v", err)
	}
	if !strings.Contains(fake.bodies[0], `"user_id":"u1"`) || !strings.Contains(fake.bodies[0], `"multi_match"`) {
		t.Fatalf("unexpected query: %s", fake.bodies[0])
	}
}

func TestSearchQuestionsSurfacesErrors(t *testing.T) {
	fake := &fakeES{respond: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"reason":"bad query"}}`))
	}}
	idx := newIndex(t, fake)

	_, err := idx.SearchQuestions(context.Background(), "u1", "x")
	if err == nil || !strings.Contains(err.Error(), "bad query") {
		t.Fatalf("expected reason in error, got %v", err)
	}
}

func TestBuildSearchQueryWithoutText(t *testing.T) {
	q := buildSearchQuery("u1", "   ")
	boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	if _, ok := boolQuery["must"]; ok {
		t.Fatal("blank query should only filter by user")
	}
}

func TestDeleteQuestionsCreatedBefore(t *testing.T) {
	fake := &fakeES{respond: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"took":3,"deleted":2,"failures":[]}`))
	}}
	idx := newIndex(t, fake)

	cutoff := time.Date(2024, 1, 8, 10, 30, 0, 0, time.UTC)
	n, err := idx.DeleteQuestionsCreatedBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	if len(fake.requests) != 1 || fake.requests[0] != "POST /questions/_delete_by_query" {
		t.Fatalf("unexpected requests: %v", fake.requests)
	}

	var sent struct {
		Query struct {
			Range struct {
				CreatedAt map[string]string `json:"created_at"`
			} `json:"range"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(fake.bodies[0]), &sent); err != nil {
		t.Fatalf("decode query: %v", err)
	}
	if sent.Query.Range.CreatedAt["lt"] != "2024-01-08T10:30:00Z" {
		t.Fatalf("unexpected range: %s", fake.bodies[0])
	}
}

func TestDeleteQuestionsCreatedBeforeSurfacesErrors(t *testing.T) {
	fake := &fakeES{respond: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"reason":"no such index"}}`))
	}}
	idx := newIndex(t, fake)

	if _, err := idx.DeleteQuestionsCreatedBefore(context.Background(), time.Now()); err == nil ||
		!strings.Contains(err.Error(), "no such index") {
		t.Fatalf("expected reason in error, got %v", err)
	}
}
