package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/transcript"
)

type EncodeResult struct {
	Data         []byte
	MessageCount int64
}

// parquetMessage is one transcript message flattened for columnar export.
// Sequence is the zero-based position within the session transcript.
type parquetMessage struct {
	SessionID       string `parquet:"session_id"`
	Sequence        int64  `parquet:"sequence"`
	Role            string `parquet:"role"`
	Content         string `parquet:"content"`
	StartedAtUnixMs int64  `parquet:"started_at_unix_ms"`
	UpdatedAtUnixMs int64  `parquet:"updated_at_unix_ms"`
}

// EncodeSessionToParquet renders one persisted session as a parquet file
// with one row per transcript message.
func EncodeSessionToParquet(session transcript.Session) (EncodeResult, error) {
	if strings.TrimSpace(session.MessageLog) == "" {
		return EncodeResult{}, fmt.Errorf("session %q has an empty transcript", session.SessionID)
	}
	var messages []completion.Message
	if err := json.Unmarshal([]byte(session.MessageLog), &messages); err != nil {
		return EncodeResult{}, fmt.Errorf("decode transcript for session %q: %w", session.SessionID, err)
	}
	if len(messages) == 0 {
		return EncodeResult{}, fmt.Errorf("session %q carries no messages", session.SessionID)
	}

	var updatedAtUnixMs int64
	if session.UpdatedAt != nil {
		updatedAtUnixMs = session.UpdatedAt.UTC().UnixMilli()
	}

	rows := make([]parquetMessage, 0, len(messages))
	for i, message := range messages {
		rows = append(rows, parquetMessage{
			SessionID:       session.SessionID,
			Sequence:        int64(i),
			Role:            message.Role,
			Content:         message.Content,
			StartedAtUnixMs: session.StartedAt.UTC().UnixMilli(),
			UpdatedAtUnixMs: updatedAtUnixMs,
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetMessage](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:         buf.Bytes(),
		MessageCount: int64(len(rows)),
	}, nil
}
