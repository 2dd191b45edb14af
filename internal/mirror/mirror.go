// Package mirror provides the browser-local shadow copy of in-progress form
// data. The mirror is written under fixed, well-known keys rather than a
// session id because it exists precisely for the window before a
// server-confirmed session id has been minted.
package mirror

import (
	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// Fixed storage keys, shared with the web client. Renaming any of these is a
// breaking change for in-flight recoveries.
const (
	KeyPendingCV        = "pendingCV"
	KeyPendingJob       = "pendingJob"
	KeyPendingEmail     = "pendingEmail"
	KeyPendingPlan      = "pendingPlan"
	KeySelectedTemplate = "selectedTemplate"
)

// Keys lists every fixed key the mirror owns, in a stable order.
var Keys = []string{
	KeyPendingCV,
	KeyPendingJob,
	KeyPendingEmail,
	KeyPendingPlan,
	KeySelectedTemplate,
}

// Backend is the synchronous string-keyed storage contract (browser Web
// Storage, or an in-memory stand-in). Get returns ok=false for absent keys;
// absence and empty string are distinct.
type Backend interface {
	Get(key string) (value string, ok bool)
	Set(key, value string)
	Remove(key string)
}

// Snapshot holds whatever subset of form fields the mirror had. Partial data
// is still a snapshot; resume text alone is more valuable than nothing.
type Snapshot struct {
	ResumeText string
	JobPosting string
	Email      string
	Plan       session.Plan
	Template   string
}

// Empty reports whether every field is blank. The recovery orchestrator uses
// it to skip a snapshot whose keys existed but carried nothing.
func (s Snapshot) Empty() bool {
	return s.ResumeText == "" && s.JobPosting == "" && s.Email == "" &&
		s.Plan == "" && s.Template == ""
}

// Mirror reads and writes the fixed keys on a Backend.
type Mirror struct {
	backend Backend
}

// New returns a Mirror over the given backend.
func New(backend Backend) *Mirror {
	return &Mirror{backend: backend}
}

// MirrorField overwrites the value under one fixed key. No validation
// happens here: this is deliberately last-resort, lossy-tolerant storage,
// and validation runs when the data is later applied to application state.
func (m *Mirror) MirrorField(key, value string) {
	m.backend.Set(key, value)
}

// ReadAll reads every fixed key. It fails with session.ErrMirrorEmpty only
// when all keys are absent; any present field yields a snapshot.
func (m *Mirror) ReadAll() (Snapshot, error) {
	var snap Snapshot
	found := false
	if v, ok := m.backend.Get(KeyPendingCV); ok {
		snap.ResumeText = v
		found = true
	}
	if v, ok := m.backend.Get(KeyPendingJob); ok {
		snap.JobPosting = v
		found = true
	}
	if v, ok := m.backend.Get(KeyPendingEmail); ok {
		snap.Email = v
		found = true
	}
	if v, ok := m.backend.Get(KeyPendingPlan); ok {
		snap.Plan = session.Plan(v)
		found = true
	}
	if v, ok := m.backend.Get(KeySelectedTemplate); ok {
		snap.Template = v
		found = true
	}
	if !found {
		return Snapshot{}, session.ErrMirrorEmpty
	}
	return snap, nil
}

// Clear deletes all fixed keys. Idempotent; the recovery orchestrator calls
// it exactly once after a successful read-and-apply to prevent stale reuse.
func (m *Mirror) Clear() {
	for _, key := range Keys {
		m.backend.Remove(key)
	}
}

// WriteSnapshot mirrors every non-empty field of snap. Used by the state
// manager when fanning out an update.
func (m *Mirror) WriteSnapshot(snap Snapshot) {
	if snap.ResumeText != "" {
		m.backend.Set(KeyPendingCV, snap.ResumeText)
	}
	if snap.JobPosting != "" {
		m.backend.Set(KeyPendingJob, snap.JobPosting)
	}
	if snap.Email != "" {
		m.backend.Set(KeyPendingEmail, snap.Email)
	}
	if snap.Plan != "" {
		m.backend.Set(KeyPendingPlan, string(snap.Plan))
	}
	if snap.Template != "" {
		m.backend.Set(KeySelectedTemplate, snap.Template)
	}
}
