package chat

import (
	"errors"
	"testing"
)

func TestParseStructuredReplyStripsFences(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain object", `{"SQL": "SELECT 1;"}`},
		{"json fence", "```json\n{\"SQL\": \"SELECT 1;\"}\n```"},
		{"bare fence", "```\n{\"SQL\": \"SELECT 1;\"}\n```"},
		{"surrounding whitespace", "  \n{\"SQL\": \"SELECT 1;\"}\n  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := parseStructuredReply(tt.content)
			if err != nil {
				t.Fatalf("parseStructuredReply() error = %v", err)
			}
			if got, ok := fields["SQL"]; !ok || got != "SELECT 1;" {
				t.Fatalf("SQL = %v, want SELECT 1;", got)
			}
		})
	}
}

func TestParseStructuredReplyRejectsInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"prose", "the database has five users"},
		{"array", `[1, 2, 3]`},
		{"truncated object", `{"SQL": "SELECT`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseStructuredReply(tt.content); !errors.Is(err, ErrMalformedReply) {
				t.Fatalf("parseStructuredReply() error = %v, want ErrMalformedReply", err)
			}
		})
	}
}

func TestStringFieldRendersNonStringValues(t *testing.T) {
	fields := map[string]any{
		"SQL":    "SELECT 1;",
		"count":  float64(5),
		"truthy": true,
	}

	if got, ok := stringField(fields, "SQL"); !ok || got != "SELECT 1;" {
		t.Fatalf("SQL = %q, %v", got, ok)
	}
	if got, ok := stringField(fields, "count"); !ok || got != "5" {
		t.Fatalf("count = %q, %v", got, ok)
	}
	if got, ok := stringField(fields, "truthy"); !ok || got != "true" {
		t.Fatalf("truthy = %q, %v", got, ok)
	}
	if _, ok := stringField(fields, "Answer"); ok {
		t.Fatal("missing key reported as present")
	}
}
