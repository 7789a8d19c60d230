// Package cache converts a client's internal normalized-cache storage into
// an enumerable list of keyed entries for inspection.
package cache

import (
	"strings"
	"time"
	"unicode"
)

// Entry is one addressable record from the client cache. Entries carry no
// identity beyond their key; each snapshot recomputes them wholesale.
type Entry struct {
	Key        string    `json:"key"`
	TypeName   string    `json:"typeName,omitempty"`
	Data       any       `json:"data"`
	ObservedAt time.Time `json:"observedAt"`
}

// Snapshot converts a raw cache store into entries. It never fails: a nil
// store yields an empty slice. No ordering is guaranteed; consumers re-sort.
func Snapshot(store map[string]any) []Entry {
	entries := make([]Entry, 0, len(store))
	now := time.Now()
	for key, data := range store {
		entries = append(entries, Entry{
			Key:        key,
			TypeName:   InferTypeName(key, data),
			Data:       data,
			ObservedAt: now,
		})
	}
	return entries
}

// InferTypeName derives a type name for a cache record. The conventional
// "__typename" discriminator on the record wins; otherwise a "Type:id" style
// key contributes its prefix when it looks like a type name.
func InferTypeName(key string, data any) string {
	if m, ok := data.(map[string]any); ok {
		if tn, ok := m["__typename"].(string); ok && tn != "" {
			return tn
		}
	}
	if prefix, _, found := strings.Cut(key, ":"); found && looksLikeTypeName(prefix) {
		return prefix
	}
	return ""
}

func looksLikeTypeName(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
