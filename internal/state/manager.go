// Package state provides the in-memory source of truth for one editing or
// viewing session, reconciling URL parameters, session store lookups, and
// the browser-local mirror into a single typed view.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/cvperfect-sessions/internal/mirror"
	"github.com/jonathan/cvperfect-sessions/internal/recovery"
	"github.com/jonathan/cvperfect-sessions/internal/session"
	"github.com/jonathan/cvperfect-sessions/internal/store"
)

// Phase is the lifecycle state of a browser tab's session.
type Phase string

const (
	// PhaseEmpty is the initial state: nothing to restore, nothing typed.
	PhaseEmpty Phase = "empty"
	// PhaseRestored means the session store returned the authoritative
	// record for the id on the return URL.
	PhaseRestored Phase = "restored"
	// PhaseRecovered means the browser-local mirror supplied the data.
	PhaseRecovered Phase = "recovered"
	// PhaseEditing means the user has modified state since initialize;
	// mirror writes are live.
	PhaseEditing Phase = "editing"
	// PhaseUnrecoverable is terminal for the session: every fallback was
	// exhausted and the user must restart the upload flow. It is a state
	// value the presentation layer renders, not an error thrown upward.
	PhaseUnrecoverable Phase = "unrecoverable"
)

// Params carries the URL query parameters relevant to initialization.
type Params struct {
	SessionID string
	Plan      session.Plan
	Template  string
	// ExpectSession marks the payment-return flow, where arriving with
	// nothing recoverable is an error rather than a fresh start.
	ExpectSession bool
}

// Partial is a partial update to the editable subset of the record. Nil
// fields are left unchanged.
type Partial struct {
	ResumeText *string
	JobPosting *string
	Email      *string
	Plan       *session.Plan
	Template   *string
	Photo      *string
}

// DefaultDebounce spaces out mirror writes during active typing.
const DefaultDebounce = 400 * time.Millisecond

// Manager is constructed explicitly and passed to its consumers; there is no
// package-level instance. Lifecycle is Initialize, then Update/Pay/Reset.
type Manager struct {
	mu sync.Mutex

	phase  Phase
	record session.Record
	notice *recovery.Notice

	store        store.Store
	mirror       *mirror.Mirror
	orchestrator *recovery.Orchestrator

	debounce time.Duration
	timer    *time.Timer
}

// Option configures a Manager.
type Option func(*Manager)

// WithDebounce overrides DefaultDebounce. Tests use a zero debounce with
// Flush to make mirror writes synchronous.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// New returns a Manager in the Empty phase.
func New(st store.Store, mir *mirror.Mirror, orch *recovery.Orchestrator, opts ...Option) *Manager {
	m := &Manager{
		phase:        PhaseEmpty,
		store:        st,
		mirror:       mir,
		orchestrator: orch,
		debounce:     DefaultDebounce,
	}
	m.record.Plan = session.PlanBasic
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize resolves the tab's starting state from the URL parameters and
// both persistence layers. With a session id present the store is tried
// first and the mirror is left untouched on a hit; otherwise the recovery
// chain falls through to the mirror. Exhausting every fallback yields
// Unrecoverable when a session was expected (payment return) and Empty when
// it was not (fresh visit).
func (m *Manager) Initialize(ctx context.Context, params Params) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := m.orchestrator.Run(ctx, params.SessionID)
	switch res.Source {
	case recovery.SourceStore:
		m.record = *res.Record.Clone()
		m.phase = PhaseRestored
	case recovery.SourceMirror:
		m.applySnapshot(res.Snapshot)
		m.phase = PhaseRecovered
	default:
		if params.ExpectSession || params.SessionID != "" {
			m.phase = PhaseUnrecoverable
			return m.phase
		}
		m.phase = PhaseEmpty
	}
	m.notice = res.Notice

	// URL parameters steer plan and template on top of whatever was
	// recovered; unknown plans normalize to basic.
	if params.Plan != "" {
		m.record.Plan = session.NormalizePlan(params.Plan)
	}
	if params.Template != "" {
		m.record.Template = params.Template
	}
	return m.phase
}

// applySnapshot merges mirror data into the record. Mirror content was never
// validated at write time, so the plan is normalized here.
func (m *Manager) applySnapshot(snap mirror.Snapshot) {
	m.record.ResumeText = snap.ResumeText
	if snap.JobPosting != "" {
		jp := snap.JobPosting
		m.record.JobPosting = &jp
	}
	m.record.Email = snap.Email
	m.record.Plan = session.NormalizePlan(snap.Plan)
	if snap.Template != "" {
		m.record.Template = snap.Template
	}
}

// Update merges the partial into the in-memory state and schedules a
// debounced mirror write. The session store is never written here; that
// happens exactly once, in Pay.
func (m *Manager) Update(partial Partial) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseUnrecoverable {
		return fmt.Errorf("cannot update an unrecoverable session")
	}

	if partial.ResumeText != nil {
		m.record.ResumeText = *partial.ResumeText
	}
	if partial.JobPosting != nil {
		jp := *partial.JobPosting
		m.record.JobPosting = &jp
	}
	if partial.Email != nil {
		m.record.Email = *partial.Email
	}
	if partial.Plan != nil {
		m.record.Plan = session.NormalizePlan(*partial.Plan)
	}
	if partial.Template != nil {
		m.record.Template = *partial.Template
	}
	if partial.Photo != nil {
		p := *partial.Photo
		m.record.Photo = &p
	}

	m.phase = PhaseEditing
	m.scheduleMirrorWrite()
	return nil
}

// scheduleMirrorWrite arms (or re-arms) the debounce timer. Caller holds mu.
func (m *Manager) scheduleMirrorWrite() {
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.debounce <= 0 {
		m.writeMirrorLocked()
		return
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.writeMirrorLocked()
	})
}

// writeMirrorLocked fans the editable subset out to the mirror. Caller
// holds mu.
func (m *Manager) writeMirrorLocked() {
	snap := mirror.Snapshot{
		ResumeText: m.record.ResumeText,
		Email:      m.record.Email,
		Plan:       m.record.Plan,
		Template:   m.record.Template,
	}
	if m.record.JobPosting != nil {
		snap.JobPosting = *m.record.JobPosting
	}
	m.mirror.WriteSnapshot(snap)
}

// Flush forces any pending debounced mirror write to happen now.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.phase == PhaseEditing {
		m.writeMirrorLocked()
	}
}

// Pay validates the current state and writes it to the session store under a
// newly minted id, returning the canonical id for the checkout redirect.
// This is the subsystem's only store write.
func (m *Manager) Pay(ctx context.Context) (string, error) {
	m.Flush()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseUnrecoverable {
		return "", fmt.Errorf("cannot pay from an unrecoverable session")
	}

	rec := m.record.Clone()
	rec.SessionID = ""
	id, err := m.store.Save(ctx, rec)
	if err != nil {
		return "", err
	}
	m.record.SessionID = id
	m.record.CreatedAt = rec.CreatedAt
	m.record.PaymentStatus = rec.PaymentStatus
	return id, nil
}

// Reset restores the default empty state and clears the mirror.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.record = session.Record{Plan: session.PlanBasic}
	m.notice = nil
	m.phase = PhaseEmpty
	m.mirror.Clear()
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Record returns a copy of the current view.
func (m *Manager) Record() session.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.record.Clone()
}

// Notice returns the recovery notification for the presentation layer, or
// nil when initialization did not recover anything.
func (m *Manager) Notice() *recovery.Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notice
}
