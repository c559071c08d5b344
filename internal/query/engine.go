package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// readVerbs mark statements whose rows are fetched; everything else runs in a
// committed transaction.
var readVerbs = []string{"select", "with", "pragma", "explain"}

// Engine executes model-generated SQL against a fixed target. Every call opens
// a fresh connection so no state leaks between statements and a reconfigured
// target never sees a stale pool.
type Engine struct {
	target Target
}

func NewEngine(target Target) (*Engine, error) {
	if strings.TrimSpace(target.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch target.Driver {
	case DriverSQLite, DriverDuckDB:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", target.Driver)
	}
	return &Engine{target: target}, nil
}

func (e *Engine) Target() Target {
	return e.target
}

func (e *Engine) Execute(ctx context.Context, statement string, params ...any) (Result, error) {
	if strings.TrimSpace(statement) == "" {
		return Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	db, err := sql.Open(e.target.Driver, e.target.DSN)
	if err != nil {
		return Result{}, fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if !isReadStatement(statement) {
		if err := executeWrite(ctx, db, statement, params...); err != nil {
			return Result{}, err
		}
		return Result{Duration: time.Since(start)}, nil
	}

	rows, err := db.QueryContext(ctx, statement, params...)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// Schema snapshots the target's CREATE TABLE statements, newline-joined, for
// embedding into the task prompt.
func (e *Engine) Schema(ctx context.Context) (string, error) {
	db, err := sql.Open(e.target.Driver, e.target.DSN)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var schemaQuery string
	switch e.target.Driver {
	case DriverDuckDB:
		schemaQuery = `SELECT sql FROM duckdb_tables()`
	default:
		schemaQuery = `SELECT sql FROM sqlite_master WHERE type = 'table'`
	}

	rows, err := db.QueryContext(ctx, schemaQuery)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	statements := make([]string, 0)
	for rows.Next() {
		var statement sql.NullString
		if err := rows.Scan(&statement); err != nil {
			return "", fmt.Errorf("scan schema row: %w", err)
		}
		if statement.Valid && strings.TrimSpace(statement.String) != "" {
			statements = append(statements, statement.String)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate schema rows: %w", err)
	}
	if len(statements) == 0 {
		return "", fmt.Errorf("database %q contains no tables", e.target.DSN)
	}
	return strings.Join(statements, "\n"), nil
}

func executeWrite(ctx context.Context, db *sql.DB, statement string, params ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, statement, params...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit statement: %w", err)
	}
	return nil
}

func isReadStatement(statement string) bool {
	lowered := strings.ToLower(strings.TrimSpace(statement))
	for _, verb := range readVerbs {
		if strings.HasPrefix(lowered, verb) {
			return true
		}
	}
	return false
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
