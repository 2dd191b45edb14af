package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonathan/cvperfect-sessions/internal/cleanup"
	"github.com/jonathan/cvperfect-sessions/internal/mirror"
	"github.com/jonathan/cvperfect-sessions/internal/recovery"
	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// ---------------------------------------------------------------------
// Session Handlers
// ---------------------------------------------------------------------

type SaveSessionRequest struct {
	SessionID  string       `json:"session_id,omitempty"`
	ResumeText string       `json:"resume_text"`
	JobPosting *string      `json:"job_posting,omitempty"`
	Email      string       `json:"email"`
	Plan       session.Plan `json:"plan,omitempty"`
	Template   string       `json:"template,omitempty"`
	Photo      *string      `json:"photo,omitempty"`
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var req SaveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec := &session.Record{
		SessionID:  req.SessionID,
		ResumeText: req.ResumeText,
		JobPosting: req.JobPosting,
		Email:      req.Email,
		Plan:       req.Plan,
		Template:   req.Template,
		Photo:      req.Photo,
	}

	id, err := s.store.Save(r.Context(), rec)
	if err != nil {
		s.metrics.RecordSaveFailure()
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.metrics.RecordSave()
	s.jsonResponse(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	start := time.Now()
	rec, err := s.store.Get(r.Context(), id)
	s.metrics.RecordLookupLatency(time.Since(start))
	if err != nil {
		s.metrics.RecordLookupError(err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.metrics.RecordLookup()
	s.jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleGetSessionByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		s.errorResponse(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	rec, err := s.store.FindByEmail(r.Context(), email)
	if err != nil {
		s.metrics.RecordLookupError(err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.metrics.RecordLookup()
	s.jsonResponse(w, http.StatusOK, rec)
}

// ---------------------------------------------------------------------
// Recovery Handler
// ---------------------------------------------------------------------

// MirrorPayload carries the browser-local shadow copy the client still holds.
// The JSON field names are the client storage keys.
type MirrorPayload struct {
	PendingCV        string `json:"pendingCV,omitempty"`
	PendingJob       string `json:"pendingJob,omitempty"`
	PendingEmail     string `json:"pendingEmail,omitempty"`
	PendingPlan      string `json:"pendingPlan,omitempty"`
	SelectedTemplate string `json:"selectedTemplate,omitempty"`
}

type RecoverRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	Mirror    MirrorPayload `json:"mirror"`
}

type RecoverResponse struct {
	Source   string           `json:"source"`
	Notice   string           `json:"notice,omitempty"`
	Record   *session.Record  `json:"record,omitempty"`
	Snapshot *SnapshotPayload `json:"snapshot,omitempty"`
}

// SnapshotPayload is the mirror-sourced recovery result.
type SnapshotPayload struct {
	ResumeText string `json:"resume_text,omitempty"`
	JobPosting string `json:"job_posting,omitempty"`
	Email      string `json:"email,omitempty"`
	Plan       string `json:"plan,omitempty"`
	Template   string `json:"template,omitempty"`
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Seed a request-local mirror from the client payload. A cleared key is
	// simply never set; the distinction between absent and empty survives.
	backend := mirror.NewMemoryBackend()
	mir := mirror.New(backend)
	setMirrorKey(backend, mirror.KeyPendingCV, req.Mirror.PendingCV)
	setMirrorKey(backend, mirror.KeyPendingJob, req.Mirror.PendingJob)
	setMirrorKey(backend, mirror.KeyPendingEmail, req.Mirror.PendingEmail)
	setMirrorKey(backend, mirror.KeyPendingPlan, req.Mirror.PendingPlan)
	setMirrorKey(backend, mirror.KeySelectedTemplate, req.Mirror.SelectedTemplate)

	result := s.newOrchestrator(mir).Run(r.Context(), req.SessionID)

	resp := RecoverResponse{Source: string(result.Source)}
	if result.Notice != nil {
		resp.Notice = result.Notice.Message
	}
	switch result.Source {
	case recovery.SourceStore:
		resp.Record = result.Record
	case recovery.SourceMirror:
		resp.Snapshot = &SnapshotPayload{
			ResumeText: result.Snapshot.ResumeText,
			JobPosting: result.Snapshot.JobPosting,
			Email:      result.Snapshot.Email,
			Plan:       string(result.Snapshot.Plan),
			Template:   result.Snapshot.Template,
		}
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

func setMirrorKey(backend mirror.Backend, key, value string) {
	if value != "" {
		backend.Set(key, value)
	}
}

// ---------------------------------------------------------------------
// Cleanup Handler
// ---------------------------------------------------------------------

type CleanupRequest struct {
	DryRun      bool `json:"dry_run,omitempty"`
	MaxAgeHours int  `json:"max_age_hours,omitempty"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.MaxAgeHours < 0 {
		s.errorResponse(w, http.StatusBadRequest, "max_age_hours must be non-negative")
		return
	}

	maxAge := s.cleanupMaxAge
	if req.MaxAgeHours > 0 {
		maxAge = time.Duration(req.MaxAgeHours) * time.Hour
	}

	runner := cleanup.NewRunner(s.store, cleanup.WithMaxAge(maxAge), cleanup.WithClock(s.now))
	report, err := runner.Run(r.Context(), req.DryRun)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if !report.DryRun {
		s.metrics.RecordSwept(report.Deleted)
	}
	s.jsonResponse(w, http.StatusOK, report)
}
