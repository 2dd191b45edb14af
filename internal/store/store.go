// Package store provides durable persistence for session records across the
// payment redirect. Implementations are an opaque durable map with
// last-write-wins semantics per session id; the TTL check lives in Get and
// nowhere else.
package store

import (
	"context"
	"time"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// DefaultTTL is the canonical session lifetime. A record older than this is
// treated as absent by Get; physical deletion is the retention job's problem.
const DefaultTTL = 24 * time.Hour

// Store is the durable session persistence contract.
//
// Save validates the record, fills defaults (plan, created-at, payment
// status), mints a session id when the caller did not supply a correlation
// id, and returns the canonical id. Get enforces id format and TTL before
// and after the backend lookup. Both map infrastructure failures to
// session.ErrStoreUnavailable.
type Store interface {
	Save(ctx context.Context, rec *session.Record) (string, error)
	Get(ctx context.Context, id string) (*session.Record, error)
	// FindByEmail is the degraded-flow secondary lookup: the most recent
	// non-expired record for the given email, or session.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*session.Record, error)
	Delete(ctx context.Context, id string) error
	// ListExpired returns ids of records older than olderThan, for the
	// retention job.
	ListExpired(ctx context.Context, olderThan time.Time) ([]string, error)
	Close()
}

// prepare applies the shared save-time rules: validation, plan
// normalization, id minting, and timestamping. Every implementation calls it
// at the top of Save.
func prepare(rec *session.Record, now time.Time) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	rec.Plan = session.NormalizePlan(rec.Plan)
	if rec.PaymentStatus == "" {
		rec.PaymentStatus = session.PaymentPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.SessionID == "" {
		rec.SessionID = session.NewID(now)
	} else if _, err := session.ParseID(rec.SessionID); err != nil {
		return "", err
	}
	return rec.SessionID, nil
}

// expired reports whether a record's age exceeds ttl at time now.
func expired(rec *session.Record, now time.Time, ttl time.Duration) bool {
	return now.Sub(rec.CreatedAt) >= ttl
}
