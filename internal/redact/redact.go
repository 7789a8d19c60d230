// Package redact masks sensitive values in captured operation variables
// before they leave the inspection core.
package redact

import (
	"strings"
)

// Placeholder replaces masked values.
const Placeholder = "[REDACTED]"

// Masker decides which variable names carry secrets. Matching is
// case-insensitive substring matching over the variable name.
type Masker struct {
	markers []string
}

// DefaultMarkers are variable-name fragments that conventionally carry
// credentials.
var DefaultMarkers = []string{"password", "token", "secret", "authorization", "apikey", "api_key"}

// NewMasker builds a masker with the default markers.
func NewMasker() *Masker {
	return &Masker{markers: append([]string(nil), DefaultMarkers...)}
}

// AddMarkers registers extra sensitive-name fragments.
func (m *Masker) AddMarkers(markers []string) {
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		m.markers = append(m.markers, strings.ToLower(marker))
	}
}

// Sensitive reports whether a variable name looks like it carries a secret.
func (m *Masker) Sensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range m.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// MaskVariables returns a copy of vars with sensitive values replaced.
// Nested maps are walked; the input is never mutated.
func (m *Masker) MaskVariables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for name, value := range vars {
		if m.Sensitive(name) {
			out[name] = Placeholder
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[name] = m.MaskVariables(nested)
			continue
		}
		out[name] = value
	}
	return out
}
