// Package chat drives question answering sessions against a relational
// database. A controller owns one session at a time: it keeps the running
// transcript, asks the completion backend to turn user questions into SQL,
// executes that SQL locally, and asks the backend again to explain the
// output. Sessions and transcripts are persisted through a transcript
// store after every message.
package chat

import (
	"time"

	"github.com/askdb/askdb/internal/query"
)

// Turn statuses reported in TurnResult.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// SQLNotApplicable is reported for turns the model answered without
// querying the database.
const SQLNotApplicable = "N/A"

// Config carries the conversational settings of a controller.
type Config struct {
	// Provider names the completion backend, reported verbatim in every
	// TurnResult.
	Provider string
	// Model is the configured model identifier. Successful turns report
	// the model named by the backend response instead; this value backs
	// the turns that never got one.
	Model string
	// TaskTemplate is the system prompt template. The database schema is
	// substituted for its $db_schema placeholder at session start.
	TaskTemplate string
	// InterCallDelay is slept between receiving generated SQL and
	// executing it.
	InterCallDelay time.Duration
	// Target is the database the session answers questions about.
	Target query.Target
}

// TokenUsage accumulates backend token accounting across the completion
// calls of one turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TurnResult summarizes one user turn. SessionID, Provider, and Status are
// always set. Turns that failed before the first completion response carry
// only those three fields plus the configured model; everything else
// reflects how far the turn got.
type TurnResult struct {
	SessionID  string      `json:"session_id"`
	Provider   string      `json:"provider"`
	Status     string      `json:"status"`
	Model      string      `json:"model,omitempty"`
	LatencyMS  int64       `json:"latency_ms,omitempty"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
	SQL        string      `json:"SQL,omitempty"`
	Answer     string      `json:"Answer,omitempty"`
}
