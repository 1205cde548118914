package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a session's history. Immutable once written.
type Turn struct {
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store persists conversation history. It deliberately trades durability for
// availability: a failed write is logged and dropped, a failed read comes
// back empty. History problems must never abort a user-facing reply.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Bootstrap ensures the history table and its retrieval index exist. Called
// once by the process entry point; safe to call every startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(36) NOT NULL,
			role VARCHAR(20) NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create chat_history table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_chat_history_session_id
		ON chat_history(session_id, created_at)`); err != nil {
		return fmt.Errorf("create chat_history index: %w", err)
	}
	return nil
}

// Append records one turn. Invalid session ids or roles are dropped silently
// after a log line; so are store failures.
func (s *Store) Append(ctx context.Context, sessionID, role, content string) {
	if sessionID == "" {
		s.logger.Warn("attempted to save message without session id")
		return
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		s.logger.Warn("invalid session id format, dropping message", "session_id", sessionID)
		return
	}
	if role != RoleUser && role != RoleAssistant {
		s.logger.Warn("invalid role, dropping message", "role", role)
		return
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_history (session_id, role, content)
		VALUES ($1, $2, $3)`,
		sessionID, role, content,
	); err != nil {
		s.logger.Error("failed to save message", "session_id", sessionID, "error", err)
		return
	}
	s.logger.Debug("saved message", "session_id", sessionID, "role", role)
}

// Recent returns up to limit most recent turns in insertion order. A limit
// of zero or less means the whole history. Read failures come back as an
// empty slice.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) []Turn {
	if sessionID == "" {
		return nil
	}

	query := `
		SELECT session_id, role, content, created_at
		FROM chat_history
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to read chat history", "session_id", sessionID, "error", err)
		return nil
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			s.logger.Error("failed to scan history row", "error", err)
			return nil
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to read chat history", "session_id", sessionID, "error", err)
		return nil
	}

	// Rows come back newest first; flip to insertion order for prompts.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}
