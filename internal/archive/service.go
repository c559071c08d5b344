// Package archive exports persisted chat sessions to an object store as
// date partitioned parquet files.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/storage"
	"github.com/askdb/askdb/internal/transcript"
)

type Sessions interface {
	ListSessions(ctx context.Context, limit int) ([]transcript.Session, error)
}

type Config struct {
	Interval   time.Duration
	BatchLimit int
}

type Service struct {
	Sessions    Sessions
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
}

type RunSummary struct {
	SessionsScanned  int   `json:"sessions_scanned"`
	SessionsExported int   `json:"sessions_exported"`
	SessionsSkipped  int   `json:"sessions_skipped"`
	BytesWritten     int64 `json:"bytes_written"`
	Failures         int   `json:"failures"`
}

// Run exports on a fixed interval until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "archive cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "archive cycle completed", slog.Any("summary", summary))
			}
		}
	}
}

// RunOnce exports one batch of recent sessions. Exports already current in
// the object store are skipped; a session updated since its last export is
// written again under the same key. Per-session failures are collected and
// do not stop the batch.
func (s *Service) RunOnce(ctx context.Context) (RunSummary, error) {
	s.ensureDefaults()
	if s.Sessions == nil {
		return RunSummary{}, fmt.Errorf("session source is required")
	}
	if s.ObjectStore == nil {
		return RunSummary{}, fmt.Errorf("object store is required")
	}

	sessions, err := s.Sessions.ListSessions(ctx, s.Config.BatchLimit)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list sessions: %w", err)
	}

	summary := RunSummary{SessionsScanned: len(sessions)}
	failures := make([]string, 0)

	for _, session := range sessions {
		key, err := storage.BuildSessionArchivePath(session.SessionID, session.StartedAt)
		if err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("session %s path: %v", session.SessionID, err))
			continue
		}

		current, err := s.exportIsCurrent(ctx, key, session)
		if err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("session %s stat: %v", session.SessionID, err))
			continue
		}
		if current {
			summary.SessionsSkipped++
			continue
		}

		encoded, err := EncodeSessionToParquet(session)
		if err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("session %s encode: %v", session.SessionID, err))
			continue
		}

		if _, err := s.ObjectStore.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("session %s upload: %v", session.SessionID, err))
			continue
		}
		summary.SessionsExported++
		summary.BytesWritten += int64(len(encoded.Data))
	}

	if summary.SessionsExported > 0 {
		archiveSessionsExportedTotal.Add(float64(summary.SessionsExported))
	}
	if summary.BytesWritten > 0 {
		archiveBytesWrittenTotal.Add(float64(summary.BytesWritten))
	}
	if len(failures) > 0 {
		archiveRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("archive encountered %d failure(s): %s", len(failures), strings.Join(failures, "; "))
	}
	archiveRunsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

// exportIsCurrent reports whether the stored object already reflects the
// session. A session updated after the object was written is stale.
func (s *Service) exportIsCurrent(ctx context.Context, key string, session transcript.Session) (bool, error) {
	info, err := s.ObjectStore.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	if session.UpdatedAt != nil && session.UpdatedAt.After(info.LastModified) {
		return false, nil
	}
	return true, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.Interval <= 0 {
		s.Config.Interval = time.Hour
	}
	if s.Config.BatchLimit <= 0 {
		s.Config.BatchLimit = 200
	}
}
