package history

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore persists turns in the conversation_history table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate runs the embedded goose migrations against the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Append inserts one row. The database assigns id and timestamp.
func (s *PostgresStore) Append(ctx context.Context, sessionID, userText, emotion, aiResponse string) (history.Turn, error) {
	if err := validateTurn(sessionID, userText, aiResponse); err != nil {
		return history.Turn{}, err
	}

	turn := history.Turn{
		SessionID:       sessionID,
		UserText:        userText,
		DetectedEmotion: emotion,
		AIResponse:      aiResponse,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversation_history (session_id, user_text, detected_emotion, ai_response)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, sessionID, userText, emotion, aiResponse).Scan(&turn.ID, &turn.Timestamp)
	if err != nil {
		return history.Turn{}, fmt.Errorf("appending turn: %w", err)
	}

	turn.Timestamp = turn.Timestamp.UTC()
	return turn, nil
}

// Recent selects the newest limit rows and returns them oldest first.
func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error) {
	if limit <= 0 {
		return []history.Message{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_text, detected_emotion, ai_response, created_at FROM (
			SELECT id, user_text, detected_emotion, ai_response, created_at
			FROM conversation_history
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	defer rows.Close()

	turns := make([]history.Turn, 0, limit)
	for rows.Next() {
		t := history.Turn{SessionID: sessionID}
		if err := rows.Scan(&t.ID, &t.UserText, &t.DetectedEmotion, &t.AIResponse, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return history.ToMessages(turns), nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
