package query

import (
	"context"
	"time"
)

// Target identifies the database a chat session answers questions against.
type Target struct {
	Driver string
	DSN    string
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

type Executor interface {
	Execute(ctx context.Context, statement string, params ...any) (Result, error)
	Schema(ctx context.Context) (string, error)
}
