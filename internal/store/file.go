package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/cvperfect-sessions/internal/schemas"
	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// File is a filesystem-backed Store for single-node deployments without a
// database. Records live as <dir>/<session_id>.json; a secondary index
// <dir>/email-index/<sha256[:16]>.json supports the email recovery flow.
type File struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// emailIndexEntry is the pointer stored in the email index.
type emailIndexEntry struct {
	SessionID string       `json:"session_id"`
	Plan      session.Plan `json:"plan"`
	CreatedAt time.Time    `json:"created_at"`
}

// FileOption configures a File store.
type FileOption func(*File)

// WithFileTTL overrides DefaultTTL.
func WithFileTTL(ttl time.Duration) FileOption {
	return func(f *File) { f.ttl = ttl }
}

// WithFileClock overrides the store's clock.
func WithFileClock(now func() time.Time) FileOption {
	return func(f *File) { f.now = now }
}

// NewFile creates the storage directories and returns a File store.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(filepath.Join(dir, "email-index"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	f := &File{dir: dir, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// EmailHash returns the index key for an email: the first 16 hex characters
// of the SHA-256 of the lowercased address.
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])[:16]
}

func (f *File) recordPath(id string) string {
	return filepath.Join(f.dir, id+".json")
}

func (f *File) indexPath(email string) string {
	return filepath.Join(f.dir, "email-index", EmailHash(email)+".json")
}

// Save writes the record file and its email index entry.
func (f *File) Save(_ context.Context, rec *session.Record) (string, error) {
	id, err := prepare(rec, f.now())
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

	if err := os.WriteFile(f.recordPath(id), payload, 0o600); err != nil {
		return "", session.Unavailable(fmt.Errorf("failed to write session file: %w", err))
	}

	entry, err := json.Marshal(emailIndexEntry{
		SessionID: id,
		Plan:      rec.Plan,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal email index entry: %w", err)
	}
	if err := os.WriteFile(f.indexPath(rec.Email), entry, 0o600); err != nil {
		return "", session.Unavailable(fmt.Errorf("failed to write email index: %w", err))
	}
	return id, nil
}

// Get reads the record for id, enforcing id format and TTL.
func (f *File) Get(_ context.Context, id string) (*session.Record, error) {
	if _, err := session.ParseID(id); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(f.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.ErrNotFound
		}
		return nil, session.Unavailable(fmt.Errorf("failed to read session file: %w", err))
	}

	rec, err := decodeRecord(payload)
	if err != nil {
		return nil, err
	}
	if expired(rec, f.now(), f.ttl) {
		return nil, session.ErrExpired
	}
	return rec, nil
}

// FindByEmail resolves the email index entry and loads its session. An index
// pointing at a deleted or expired session is cleaned up and reported as not
// found, matching the orphan handling of the web flow.
func (f *File) FindByEmail(ctx context.Context, email string) (*session.Record, error) {
	data, err := os.ReadFile(f.indexPath(email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.ErrNotFound
		}
		return nil, session.Unavailable(fmt.Errorf("failed to read email index: %w", err))
	}

	var entry emailIndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, session.Unavailable(fmt.Errorf("failed to decode email index: %w", err))
	}

	rec, err := f.Get(ctx, entry.SessionID)
	if err != nil {
		if session.Recoverable(err) {
			// Orphaned index entry; remove it so the next attempt
			// fails fast.
			_ = os.Remove(f.indexPath(email))
			return nil, err
		}
		return nil, err
	}
	return rec, nil
}

// Delete removes the record file. The email index entry is left for the
// orphan cleanup in FindByEmail or the retention job.
func (f *File) Delete(_ context.Context, id string) error {
	if err := os.Remove(f.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return session.Unavailable(fmt.Errorf("failed to delete session file: %w", err))
	}
	return nil
}

// ListExpired scans the session directory for records created before
// olderThan.
func (f *File) ListExpired(_ context.Context, olderThan time.Time) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, session.Unavailable(fmt.Errorf("failed to read session directory: %w", err))
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		payload, err := os.ReadFile(f.recordPath(id))
		if err != nil {
			continue
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			// Unreadable payloads count as expired so the retention
			// job reclaims them.
			ids = append(ids, id)
			continue
		}
		if rec.CreatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PruneOrphanedIndexes removes email index entries whose session file no
// longer exists. Returns the number removed.
func (f *File) PruneOrphanedIndexes(_ context.Context) (int, error) {
	indexDir := filepath.Join(f.dir, "email-index")
	entries, err := os.ReadDir(indexDir)
	if err != nil {
		return 0, session.Unavailable(fmt.Errorf("failed to read email index directory: %w", err))
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(indexDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var idx emailIndexEntry
		if err := json.Unmarshal(data, &idx); err != nil {
			_ = os.Remove(path)
			removed++
			continue
		}
		if _, err := os.Stat(f.recordPath(idx.SessionID)); os.IsNotExist(err) {
			_ = os.Remove(path)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the file store.
func (f *File) Close() {}

var _ Store = (*File)(nil)
