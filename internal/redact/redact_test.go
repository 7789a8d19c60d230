package redact

import (
	"reflect"
	"testing"
)

func TestSensitive(t *testing.T) {
	m := NewMasker()
	m.AddMarkers([]string{"ssn", ""})

	tests := []struct {
		name string
		want bool
	}{
		{"password", true},
		{"userPassword", true},
		{"accessToken", true},
		{"API_KEY", true},
		{"clientSecret", true},
		{"ssnLast4", true},
		{"id", false},
		{"name", false},
		{"email", false},
	}
	for _, tt := range tests {
		if got := m.Sensitive(tt.name); got != tt.want {
			t.Errorf("Sensitive(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMaskVariables(t *testing.T) {
	m := NewMasker()
	in := map[string]any{
		"id":       "1",
		"password": "hunter2",
		"profile": map[string]any{
			"name":     "Ada",
			"apiToken": "abc123",
		},
	}

	got := m.MaskVariables(in)
	want := map[string]any{
		"id":       "1",
		"password": Placeholder,
		"profile": map[string]any{
			"name":     "Ada",
			"apiToken": Placeholder,
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MaskVariables() = %v, want %v", got, want)
	}

	// Input untouched.
	if in["password"] != "hunter2" {
		t.Error("MaskVariables mutated its input")
	}
	if in["profile"].(map[string]any)["apiToken"] != "abc123" {
		t.Error("MaskVariables mutated a nested map")
	}
}

func TestMaskVariablesNil(t *testing.T) {
	if got := NewMasker().MaskVariables(nil); got != nil {
		t.Errorf("MaskVariables(nil) = %v, want nil", got)
	}
}
