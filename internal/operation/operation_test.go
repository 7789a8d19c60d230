package operation

import (
	"sync"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		document string
		wantName string
		wantKind Kind
	}{
		{"named query", `query GetUser($id: ID!) { user(id: $id) { name } }`, "GetUser", KindQuery},
		{"named mutation", `mutation DeleteUser { deleteUser(id: "1") }`, "DeleteUser", KindMutation},
		{"named subscription", `subscription OnPing { ping }`, "OnPing", KindSubscription},
		{"anonymous query", `{ user { name } }`, UnnamedLabel, KindQuery},
		{"anonymous with keyword", `query { user { name } }`, UnnamedLabel, KindQuery},
		{"garbage", `not graphql at all`, UnnamedLabel, KindQuery},
		{"truncated named", `query GetUser($id:`, "GetUser", KindQuery},
		{"empty", ``, UnnamedLabel, KindQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, kind := Describe(tt.document)
			if name != tt.wantName {
				t.Errorf("Describe() name = %q, want %q", name, tt.wantName)
			}
			if kind != tt.wantKind {
				t.Errorf("Describe() kind = %q, want %q", kind, tt.wantKind)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusLoading, true},
		{StatusPending, StatusSuccess, true},
		{StatusPending, StatusError, true},
		{StatusLoading, StatusSuccess, true},
		{StatusLoading, StatusError, true},
		{StatusLoading, StatusPending, false},
		{StatusSuccess, StatusLoading, false},
		{StatusSuccess, StatusError, false},
		{StatusError, StatusSuccess, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestClassifyResult(t *testing.T) {
	errs := []ErrorDetail{{Message: "boom"}}
	if got := ClassifyResult(nil, errs); got != StatusError {
		t.Errorf("errors present: got %s, want %s", got, StatusError)
	}
	if got := ClassifyResult(map[string]any{"user": nil}, nil); got != StatusSuccess {
		t.Errorf("data present: got %s, want %s", got, StatusSuccess)
	}
	if got := ClassifyResult(nil, nil); got != StatusLoading {
		t.Errorf("neither: got %s, want %s", got, StatusLoading)
	}
	// Errors win even when data is present.
	if got := ClassifyResult(map[string]any{}, errs); got != StatusError {
		t.Errorf("errors with data: got %s, want %s", got, StatusError)
	}
}

func TestMinterUniqueness(t *testing.T) {
	var m Minter
	const n = 2000

	seen := make(map[string]struct{}, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/8; j++ {
				id := m.Mint()
				mu.Lock()
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate identity %q", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("got %d distinct ids, want %d", len(seen), n)
	}
}
