package transcript

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("transcript: not found")

// Session is one stored conversation log: the serialized message sequence for
// a single chat session. Rows are never deleted; they accumulate for audit.
type Session struct {
	ID         int64
	SessionID  string
	MessageLog string
	StartedAt  time.Time
	UpdatedAt  *time.Time
}

type Store interface {
	EnsureSchema(ctx context.Context) error
	CreateSession(ctx context.Context, sessionID string) error
	UpdateSession(ctx context.Context, sessionID, messageLog string) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	HealthCheck(ctx context.Context) error
}
