package refclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gqlscope/internal/logging"
)

// graphqlStub answers every request with the configured response and counts
// round-trips.
type graphqlStub struct {
	response Response
	hits     atomic.Int64
}

func (s *graphqlStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.response)
	}
}

func TestQueryPopulatesRegistryAndCache(t *testing.T) {
	stub := &graphqlStub{response: Response{Data: map[string]any{
		"user": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	}}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, WithLogger(logging.Discard()))
	resp, err := c.Query(context.Background(), `query GetUser { user { id name } }`, map[string]any{"id": "1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Data == nil {
		t.Fatal("missing data")
	}

	reg := c.Registry()
	if len(reg) != 1 {
		t.Fatalf("registry has %d entries, want 1", len(reg))
	}
	if reg[0].InFlight {
		t.Error("settled query still marked in flight")
	}

	store := c.Store()
	entry, ok := store["User:1"].(map[string]any)
	if !ok {
		t.Fatalf("cache missing normalized User:1, have keys %v", keys(store))
	}
	if entry["name"] != "Ada" {
		t.Errorf("User:1 name = %v, want Ada", entry["name"])
	}
	if _, ok := store["ROOT_QUERY"]; !ok {
		t.Error("cache missing ROOT_QUERY record")
	}
}

func TestRepeatQueryServedFromCache(t *testing.T) {
	stub := &graphqlStub{response: Response{Data: map[string]any{"ping": "pong"}}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, WithLogger(logging.Discard()))
	ctx := context.Background()
	doc := `query Ping { ping }`

	if _, err := c.Query(ctx, doc, nil); err != nil {
		t.Fatalf("first query: %v", err)
	}
	if _, err := c.Query(ctx, doc, nil); err != nil {
		t.Fatalf("second query: %v", err)
	}
	if got := stub.hits.Load(); got != 1 {
		t.Errorf("round-trips = %d, want 1 (second served from cache)", got)
	}

	if _, err := c.Refetch(ctx, doc, nil); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got := stub.hits.Load(); got != 2 {
		t.Errorf("round-trips after refetch = %d, want 2", got)
	}
}

func TestMutationLogGrows(t *testing.T) {
	stub := &graphqlStub{response: Response{
		Errors: []Error{{Message: "not found"}},
	}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, WithLogger(logging.Discard()))
	if _, err := c.Mutate(context.Background(), `mutation DeleteUser { deleteUser(id: "1") { id } }`, nil); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	log := c.MutationLog()
	if len(log) != 1 {
		t.Fatalf("mutation log has %d entries, want 1", len(log))
	}
	if log[0].Loading {
		t.Error("settled mutation still loading")
	}
	if len(log[0].Errors) != 1 || log[0].Errors[0].Message != "not found" {
		t.Errorf("mutation errors = %v", log[0].Errors)
	}
}

type captureHook struct {
	started   []string
	finished  int
	failed    int
	fromCache []bool
}

func (h *captureHook) OperationStarted(document string, _ map[string]any) any {
	h.started = append(h.started, document)
	return len(h.started)
}

func (h *captureHook) OperationFinished(_ any, _ any, _ []Error, fromCache bool) {
	h.finished++
	h.fromCache = append(h.fromCache, fromCache)
}

func (h *captureHook) OperationFailed(any, error) { h.failed++ }

func TestHookBracketsEveryDispatch(t *testing.T) {
	stub := &graphqlStub{response: Response{Data: map[string]any{"ping": "pong"}}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, WithLogger(logging.Discard()))
	hook := &captureHook{}
	c.SetHook(hook)

	ctx := context.Background()
	doc := `query Ping { ping }`
	c.Query(ctx, doc, nil)
	c.Query(ctx, doc, nil) // cache hit still triggers the hook pair

	if len(hook.started) != 2 || hook.finished != 2 {
		t.Fatalf("hook counts: started=%d finished=%d, want 2/2", len(hook.started), hook.finished)
	}
	if hook.fromCache[0] || !hook.fromCache[1] {
		t.Errorf("fromCache flags = %v, want [false true]", hook.fromCache)
	}
}

func TestTransportFailureHitsFailHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, WithLogger(logging.Discard()))
	hook := &captureHook{}
	c.SetHook(hook)

	if _, err := c.Query(context.Background(), `{ ping }`, nil); err == nil {
		t.Fatal("expected transport error")
	}
	if hook.failed != 1 || hook.finished != 0 {
		t.Errorf("hook counts: failed=%d finished=%d, want 1/0", hook.failed, hook.finished)
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
