package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDKind classifies a session id by its prefix. The four kinds are all
// accepted by the store, but typed kinds let deployments gate demo and test
// ids outside production builds.
type IDKind string

const (
	// KindStandard ids are minted by NewID at pay time: sess_<ms>_<32 hex>.
	KindStandard IDKind = "standard"
	// KindDemo ids come from the demo flow (demo_session_ prefix).
	KindDemo IDKind = "demo"
	// KindTest ids are development fixtures (test_ prefix).
	KindTest IDKind = "test"
	// KindFallback ids are minted client-side when checkout could not
	// provide a correlation id (fallback_ prefix).
	KindFallback IDKind = "fallback"
)

// ParsedID is the result of parsing a raw session id.
type ParsedID struct {
	Kind IDKind
	Raw  string
}

var (
	standardPattern = regexp.MustCompile(`^sess_\d{13}_[a-f0-9]{32}$`)
	suffixPattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ParseID validates a raw session id against the recognized prefix patterns
// and returns its kind. Unrecognized ids fail with ErrInvalidIDFormat before
// any backend lookup is attempted.
//
// This is the single id parser; no other package pattern-matches session ids.
func ParseID(raw string) (ParsedID, error) {
	if raw == "" {
		return ParsedID{}, ErrInvalidIDFormat
	}
	switch {
	case strings.HasPrefix(raw, "sess_"):
		if !standardPattern.MatchString(raw) {
			return ParsedID{}, ErrInvalidIDFormat
		}
		return ParsedID{Kind: KindStandard, Raw: raw}, nil
	case strings.HasPrefix(raw, "demo_session_"):
		if !suffixPattern.MatchString(raw[len("demo_session_"):]) || raw == "demo_session_" {
			return ParsedID{}, ErrInvalidIDFormat
		}
		return ParsedID{Kind: KindDemo, Raw: raw}, nil
	case strings.HasPrefix(raw, "test_"):
		if !suffixPattern.MatchString(raw[len("test_"):]) || raw == "test_" {
			return ParsedID{}, ErrInvalidIDFormat
		}
		return ParsedID{Kind: KindTest, Raw: raw}, nil
	case strings.HasPrefix(raw, "fallback_"):
		if !suffixPattern.MatchString(raw[len("fallback_"):]) || raw == "fallback_" {
			return ParsedID{}, ErrInvalidIDFormat
		}
		return ParsedID{Kind: KindFallback, Raw: raw}, nil
	}
	return ParsedID{}, ErrInvalidIDFormat
}

// NewID mints a standard session id: sess_<unix ms>_<32 hex chars>.
// The hex component is derived from a random UUID.
func NewID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("sess_%013d_%s", now.UnixMilli(), strings.ReplaceAll(u.String(), "-", ""))
}
