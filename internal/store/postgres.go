package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/cvperfect-sessions/internal/schemas"
	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// Postgres is the production Store, backed by a pgx connection pool. The
// record payload is stored as JSONB and validated against the session record
// JSON Schema on every write, so nothing loosely shaped ever reaches the
// table.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

// WithPostgresTTL overrides DefaultTTL.
func WithPostgresTTL(ttl time.Duration) PostgresOption {
	return func(p *Postgres) { p.ttl = ttl }
}

// WithPostgresClock overrides the store's clock.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(p *Postgres) { p.now = now }
}

// ConnectPostgres establishes a connection pool and verifies it with a ping.
func ConnectPostgres(ctx context.Context, databaseURL string, opts ...PostgresOption) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Save upserts the record keyed by its session id. Last write wins; each id
// is written once at pay time and read-only afterwards, so no optimistic
// concurrency check is needed.
func (p *Postgres) Save(ctx context.Context, rec *session.Record) (string, error) {
	id, err := prepare(rec, p.now())
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := schemas.ValidateSessionRecord(payload); err != nil {
		return "", err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO cvperfect_sessions (session_id, email, record, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE SET email = $2, record = $3, updated_at = NOW()`,
		id, rec.Email, payload, rec.CreatedAt,
	)
	if err != nil {
		return "", session.Unavailable(fmt.Errorf("failed to save session: %w", err))
	}
	return id, nil
}

// Get returns the record for id. Invalid ids fail before any query; expired
// records fail with session.ErrExpired rather than ErrNotFound so the two
// show up separately in metrics, though recovery treats them the same.
func (p *Postgres) Get(ctx context.Context, id string) (*session.Record, error) {
	if _, err := session.ParseID(id); err != nil {
		return nil, err
	}

	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT record FROM cvperfect_sessions WHERE session_id = $1`,
		id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, session.Unavailable(fmt.Errorf("failed to get session: %w", err))
	}

	rec, err := decodeRecord(payload)
	if err != nil {
		return nil, err
	}
	if expired(rec, p.now(), p.ttl) {
		return nil, session.ErrExpired
	}
	return rec, nil
}

// FindByEmail returns the most recent non-expired record for email.
func (p *Postgres) FindByEmail(ctx context.Context, email string) (*session.Record, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT record FROM cvperfect_sessions
		 WHERE email = $1 AND created_at > $2
		 ORDER BY created_at DESC LIMIT 1`,
		email, p.now().Add(-p.ttl),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, session.Unavailable(fmt.Errorf("failed to find session by email: %w", err))
	}
	return decodeRecord(payload)
}

// Delete removes the record for id.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM cvperfect_sessions WHERE session_id = $1`, id)
	if err != nil {
		return session.Unavailable(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

// ListExpired returns ids of records created before olderThan.
func (p *Postgres) ListExpired(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT session_id FROM cvperfect_sessions WHERE created_at < $1`,
		olderThan,
	)
	if err != nil {
		return nil, session.Unavailable(fmt.Errorf("failed to list expired sessions: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, session.Unavailable(fmt.Errorf("failed to scan session id: %w", err))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func decodeRecord(payload []byte) (*session.Record, error) {
	var rec session.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, session.Unavailable(fmt.Errorf("failed to decode session record: %w", err))
	}
	return &rec, nil
}

var _ Store = (*Postgres)(nil)
