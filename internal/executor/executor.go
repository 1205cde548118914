package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DataError marks a statement the store itself rejected as malformed.
type DataError struct {
	Err error
}

func (e *DataError) Error() string { return "SQL query error: " + e.Err.Error() }
func (e *DataError) Unwrap() error { return e.Err }

// ConnectionError marks transport or operational failures, including a
// statement cancelled by the configured timeout.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "database error: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// Result is an ordered tabular query result.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// allDataPhrases bypass the row cap when present in the original question.
var allDataPhrases = []string{
	"show all", "list all", "get all", "all data", "all records",
	"all rows", "everything", "entire", "complete", "full",
}

// Executor runs validated statements against the data store. It trusts its
// caller to have passed the statement through the safety guard already.
type Executor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
	logger  *slog.Logger
}

func New(db *sql.DB, maxRows int, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{db: db, maxRows: maxRows, timeout: timeout, logger: logger}
}

// Open connects to the data store for read-only query execution.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Execute runs the statement under the configured timeout, then applies the
// row-limiting policy: questions that explicitly ask for everything get the
// full result, anything else is capped at maxRows.
func (e *Executor) Execute(ctx context.Context, sqlText, originalQuestion string) (Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(queryCtx, sqlText)
	if err != nil {
		return Result{}, e.classify(err, sqlText)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, e.classify(err, sqlText)
	}

	var collected [][]any
	for rows.Next() {
		holders := make([]any, len(columns))
		for i := range holders {
			holders[i] = new(any)
		}
		if err := rows.Scan(holders...); err != nil {
			return Result{}, e.classify(err, sqlText)
		}

		row := make([]any, len(columns))
		for i, h := range holders {
			row[i] = normalize(*h.(*any))
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, e.classify(err, sqlText)
	}

	result := Result{Columns: columns, Rows: collected}

	if wantsAllData(originalQuestion) {
		e.logger.Info("user requested all data, returning uncapped result", "rows", len(collected))
		return result, nil
	}
	if len(collected) > e.maxRows {
		e.logger.Warn("query result truncated", "rows", len(collected), "max_rows", e.maxRows)
		result.Rows = collected[:e.maxRows]
		result.Truncated = true
	}
	return result, nil
}

// classify maps store failures onto the pipeline's error taxonomy. Anything
// that is neither a malformed statement nor a transport problem passes
// through unchanged.
func (e *Executor) classify(err error, sqlText string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "42", "22": // syntax errors, undefined objects, bad data
			e.logger.Error("SQL rejected by store", "code", pgErr.Code, "sql", sqlText, "error", err)
			return &DataError{Err: err}
		case "08", "53", "57": // connection, resources, cancelled statements
			e.logger.Error("database operation failed", "code", pgErr.Code, "error", err)
			return &ConnectionError{Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		e.logger.Error("database unreachable or statement timed out", "error", err)
		return &ConnectionError{Err: err}
	}

	e.logger.Error("unexpected error executing SQL", "error", err)
	return err
}

func wantsAllData(question string) bool {
	q := strings.ToLower(question)
	for _, phrase := range allDataPhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// normalize turns driver byte slices into strings so results render cleanly
// in JSON responses and previews.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
