package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps entries in the conversation_memory table so every server
// replica sees the same last action.
type Postgres struct {
	q   Querier
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*Postgres)(nil)

func NewPostgres(q Querier, ttl time.Duration, now func() time.Time) *Postgres {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Postgres{q: q, ttl: ttl, now: now}
}

func (s *Postgres) Get(ctx context.Context, userID string) (Entry, bool, error) {
	var raw []byte
	err := s.q.QueryRow(ctx,
		`SELECT entry FROM conversation_memory WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read conversation memory of %s: %w", userID, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode conversation memory of %s: %w", userID, err)
	}
	if e.ExpiredAt(s.now(), s.ttl) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *Postgres) Set(ctx context.Context, userID string, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode conversation memory: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO conversation_memory (user_id, entry, written_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET entry = EXCLUDED.entry, written_at = EXCLUDED.written_at`,
		userID, raw, e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("write conversation memory of %s: %w", userID, err)
	}
	return nil
}

func (s *Postgres) Clear(ctx context.Context, userID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM conversation_memory WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear conversation memory of %s: %w", userID, err)
	}
	return nil
}

func (s *Postgres) Purge(ctx context.Context) (int, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM conversation_memory WHERE written_at < $1`,
		s.now().Add(-s.ttl).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge conversation memory: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
