// Package refclient is a small GraphQL client with a normalized cache, an
// in-flight query registry and an append-only mutation log. It is the host
// client the built-in inspection integration observes; the snapshot
// accessors expose copies of its internals for read-only observation.
package refclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Error is a GraphQL execution error as it appears on the wire.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Location is a document position an error refers to.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Response is one GraphQL result.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []Error        `json:"errors,omitempty"`
}

// Hook is the client's request-pipeline interception point. Every dispatched
// operation triggers OperationStarted exactly once and exactly one of
// OperationFinished or OperationFailed, including operations answered from
// the cache without a network round-trip.
type Hook interface {
	OperationStarted(document string, variables map[string]any) (token any)
	OperationFinished(token any, data any, errors []Error, fromCache bool)
	OperationFailed(token any, err error)
}

// QueryRecord is one registry entry, snapshot form.
type QueryRecord struct {
	Key       string
	Document  string
	Variables map[string]any
	InFlight  bool
	Data      any
	Errors    []Error
}

// MutationRecord is one mutation-log slot, snapshot form.
type MutationRecord struct {
	Document  string
	Variables map[string]any
	Loading   bool
	Data      any
	Errors    []Error
}

// Client executes GraphQL operations over HTTP and maintains the internal
// registries the inspection core observes.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	queries   map[string]*QueryRecord
	mutations []*MutationRecord
	cache     map[string]any
	hook      Hook
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client against one GraphQL endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
		queries:  make(map[string]*QueryRecord),
		cache:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHook installs the pipeline hook. Passing nil removes it.
func (c *Client) SetHook(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = h
}

// Query executes a query. A settled registry entry for the same document and
// variables is answered from the cache without a network round-trip; use
// Refetch to force one.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	key := registryKey(document, variables)

	c.mu.Lock()
	hook := c.hook
	if rec, ok := c.queries[key]; ok && !rec.InFlight && rec.Errors == nil && rec.Data != nil {
		data := rec.Data
		c.mu.Unlock()
		if hook != nil {
			token := hook.OperationStarted(document, variables)
			hook.OperationFinished(token, data, nil, true)
		}
		m, _ := data.(map[string]any)
		return &Response{Data: m}, nil
	}
	rec := &QueryRecord{Key: key, Document: document, Variables: variables, InFlight: true}
	c.queries[key] = rec
	c.mu.Unlock()

	return c.dispatch(ctx, document, variables, hook, func(resp *Response, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec.InFlight = false
		if err != nil {
			rec.Errors = []Error{{Message: err.Error()}}
			return
		}
		rec.Data = resp.Data
		rec.Errors = resp.Errors
		if len(resp.Errors) == 0 {
			c.absorbLocked(resp.Data)
		}
	})
}

// Refetch re-executes a registered query, bypassing the cached result.
func (c *Client) Refetch(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	key := registryKey(document, variables)

	c.mu.Lock()
	hook := c.hook
	rec, ok := c.queries[key]
	if !ok {
		rec = &QueryRecord{Key: key, Document: document, Variables: variables}
		c.queries[key] = rec
	}
	rec.InFlight = true
	c.mu.Unlock()

	return c.dispatch(ctx, document, variables, hook, func(resp *Response, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec.InFlight = false
		if err != nil {
			rec.Errors = []Error{{Message: err.Error()}}
			return
		}
		rec.Data = resp.Data
		rec.Errors = resp.Errors
		if len(resp.Errors) == 0 {
			c.absorbLocked(resp.Data)
		}
	})
}

// Mutate executes a mutation and appends it to the mutation log.
func (c *Client) Mutate(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	c.mu.Lock()
	hook := c.hook
	rec := &MutationRecord{Document: document, Variables: variables, Loading: true}
	c.mutations = append(c.mutations, rec)
	c.mu.Unlock()

	return c.dispatch(ctx, document, variables, hook, func(resp *Response, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec.Loading = false
		if err != nil {
			rec.Errors = []Error{{Message: err.Error()}}
			return
		}
		rec.Data = resp.Data
		rec.Errors = resp.Errors
		if len(resp.Errors) == 0 {
			c.absorbLocked(resp.Data)
		}
	})
}

// dispatch runs one network execution with hook bracketing. The settle
// callback records the outcome in whichever registry owns the operation.
func (c *Client) dispatch(ctx context.Context, document string, variables map[string]any, hook Hook, settle func(*Response, error)) (*Response, error) {
	var token any
	if hook != nil {
		token = hook.OperationStarted(document, variables)
	}

	raw, err := c.Do(ctx, document, variables)
	if err != nil {
		settle(nil, err)
		if hook != nil {
			hook.OperationFailed(token, err)
		}
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		err = fmt.Errorf("refclient: decode response: %w", err)
		settle(nil, err)
		if hook != nil {
			hook.OperationFailed(token, err)
		}
		return nil, err
	}

	settle(&resp, nil)
	if hook != nil {
		hook.OperationFinished(token, resp.Data, resp.Errors, false)
	}
	return &resp, nil
}

// Do executes one raw GraphQL request and returns the response body. It
// never consults or writes the cache, so callers can force a round-trip
// (introspection does).
func (c *Client) Do(ctx context.Context, document string, variables map[string]any) ([]byte, error) {
	body, err := json.Marshal(map[string]any{"query": document, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("refclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("refclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refclient: execute: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("refclient: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refclient: endpoint returned %d", resp.StatusCode)
	}
	return raw, nil
}

// Registry returns a copy of the query registry.
func (c *Client) Registry() []QueryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]QueryRecord, 0, len(c.queries))
	for _, rec := range c.queries {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MutationLog returns a copy of the append-only mutation history, oldest
// first.
func (c *Client) MutationLog() []MutationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MutationRecord, 0, len(c.mutations))
	for _, rec := range c.mutations {
		out = append(out, *rec)
	}
	return out
}

// Store returns a copy of the normalized cache.
func (c *Client) Store() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.cache))
	for k, v := range c.cache {
		out[k] = v
	}
	return out
}

// absorbLocked normalizes a result into the cache: objects carrying both
// __typename and id are stored under "Type:id" keys, and top-level fields
// land on the ROOT_QUERY record. Caller holds c.mu.
func (c *Client) absorbLocked(data map[string]any) {
	if data == nil {
		return
	}
	root, _ := c.cache["ROOT_QUERY"].(map[string]any)
	if root == nil {
		root = map[string]any{}
	}
	for field, value := range data {
		root[field] = c.normalizeLocked(value)
	}
	c.cache["ROOT_QUERY"] = root
}

func (c *Client) normalizeLocked(value any) any {
	switch v := value.(type) {
	case map[string]any:
		normalized := make(map[string]any, len(v))
		for k, inner := range v {
			normalized[k] = c.normalizeLocked(inner)
		}
		tn, _ := v["__typename"].(string)
		id := v["id"]
		if tn != "" && id != nil {
			key := fmt.Sprintf("%s:%v", tn, id)
			c.cache[key] = normalized
			return map[string]any{"__ref": key}
		}
		return normalized
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = c.normalizeLocked(inner)
		}
		return out
	default:
		return value
	}
}

// registryKey fingerprints a document plus its variables. encoding/json
// sorts map keys, so equal variable maps produce equal keys.
func registryKey(document string, variables map[string]any) string {
	if len(variables) == 0 {
		return document
	}
	raw, err := json.Marshal(variables)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", variables))
	}
	return document + "|" + string(raw)
}
