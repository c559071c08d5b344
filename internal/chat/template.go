package chat

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed templates/task_template.md
var defaultTaskTemplate string

// DefaultTaskTemplate returns the embedded task template. It instructs the
// model to reply with JSON objects carrying either a SQL or an Answer key.
func DefaultTaskTemplate() string {
	return defaultTaskTemplate
}

// LoadTaskTemplate reads the task template from path. An empty path selects
// the embedded default.
func LoadTaskTemplate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return defaultTaskTemplate, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read task template: %w", err)
	}
	return string(raw), nil
}

// RenderSystemPrompt substitutes the database schema into the task template.
// Both $db_schema and ${db_schema} spellings are recognized.
func RenderSystemPrompt(template, schema string) string {
	rendered := strings.ReplaceAll(template, "${db_schema}", schema)
	return strings.ReplaceAll(rendered, "$db_schema", schema)
}
