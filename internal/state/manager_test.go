package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cvperfect-sessions/internal/mirror"
	"github.com/jonathan/cvperfect-sessions/internal/recovery"
	"github.com/jonathan/cvperfect-sessions/internal/session"
	"github.com/jonathan/cvperfect-sessions/internal/store"
)

type fixture struct {
	store   *store.Memory
	backend *mirror.MemoryBackend
	mirror  *mirror.Mirror
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	backend := mirror.NewMemoryBackend()
	mir := mirror.New(backend)
	orch := recovery.New(st, mir)
	// Zero debounce keeps mirror writes synchronous in tests.
	mgr := New(st, mir, orch, WithDebounce(0))
	return &fixture{store: st, backend: backend, mirror: mir, manager: mgr}
}

func strPtr(s string) *string { return &s }

func planPtr(p session.Plan) *session.Plan { return &p }

func TestInitialize_FreshVisitStaysEmpty(t *testing.T) {
	f := newFixture(t)

	phase := f.manager.Initialize(context.Background(), Params{})

	assert.Equal(t, PhaseEmpty, phase)
	assert.Nil(t, f.manager.Notice())
}

func TestInitialize_NoIDWithMirrorRecovers(t *testing.T) {
	f := newFixture(t)
	f.mirror.MirrorField(mirror.KeyPendingCV, "Anna Nowak CV text")
	f.mirror.MirrorField(mirror.KeyPendingPlan, "premium")

	phase := f.manager.Initialize(context.Background(), Params{})

	assert.Equal(t, PhaseRecovered, phase)
	rec := f.manager.Record()
	assert.Equal(t, "Anna Nowak CV text", rec.ResumeText)
	assert.Equal(t, session.PlanPremium, rec.Plan)

	// Mirror consumed.
	assert.Equal(t, 0, f.backend.Len())

	notice := f.manager.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, recovery.SourceMirror, notice.Source)
}

func TestInitialize_ValidIDStoreHit(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.Save(context.Background(), &session.Record{
		ResumeText: "Jan Kowalski, 5 years experience",
		Email:      "jan@example.com",
		Plan:       session.PlanGold,
	})
	require.NoError(t, err)

	phase := f.manager.Initialize(context.Background(), Params{SessionID: id})

	assert.Equal(t, PhaseRestored, phase)
	rec := f.manager.Record()
	assert.Equal(t, session.PlanGold, rec.Plan)
	assert.Equal(t, id, rec.SessionID)
}

func TestInitialize_ValidIDStoreMissFallsBackToMirror(t *testing.T) {
	f := newFixture(t)
	f.mirror.MirrorField(mirror.KeyPendingCV, "Anna Nowak CV text")

	phase := f.manager.Initialize(context.Background(), Params{SessionID: "test_missing"})

	assert.Equal(t, PhaseRecovered, phase)
	assert.Equal(t, "Anna Nowak CV text", f.manager.Record().ResumeText)
}

func TestInitialize_ValidIDTotalMissUnrecoverable(t *testing.T) {
	f := newFixture(t)

	phase := f.manager.Initialize(context.Background(), Params{SessionID: "test_missing"})

	assert.Equal(t, PhaseUnrecoverable, phase)
}

func TestInitialize_ExpectSessionTotalMissUnrecoverable(t *testing.T) {
	f := newFixture(t)

	// Payment-return page with no id and no mirror: an explicit error
	// state, never a silent empty form.
	phase := f.manager.Initialize(context.Background(), Params{ExpectSession: true})

	assert.Equal(t, PhaseUnrecoverable, phase)
}

func TestInitialize_MalformedIDFallsBackWithoutStoreCall(t *testing.T) {
	f := newFixture(t)
	f.mirror.MirrorField(mirror.KeyPendingCV, "draft")

	phase := f.manager.Initialize(context.Background(), Params{SessionID: "invalid_session_123"})

	assert.Equal(t, PhaseRecovered, phase)
}

func TestInitialize_URLParamsOverridePlanAndTemplate(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.Save(context.Background(), &session.Record{
		ResumeText: "cv",
		Email:      "jan@example.com",
		Plan:       session.PlanBasic,
		Template:   "simple",
	})
	require.NoError(t, err)

	f.manager.Initialize(context.Background(), Params{
		SessionID: id,
		Plan:      session.PlanPremium,
		Template:  "modern",
	})

	rec := f.manager.Record()
	assert.Equal(t, session.PlanPremium, rec.Plan)
	assert.Equal(t, "modern", rec.Template)
}

func TestInitialize_UnknownURLPlanNormalizedToBasic(t *testing.T) {
	f := newFixture(t)
	f.mirror.MirrorField(mirror.KeyPendingCV, "cv")

	f.manager.Initialize(context.Background(), Params{Plan: "enterprise"})

	assert.Equal(t, session.PlanBasic, f.manager.Record().Plan)
}

func TestUpdate_TransitionsToEditingAndMirrors(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background(), Params{})

	err := f.manager.Update(Partial{
		ResumeText: strPtr("Jan Kowalski, 5 years experience"),
		Email:      strPtr("jan@example.com"),
		Plan:       planPtr(session.PlanGold),
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseEditing, f.manager.Phase())

	snap, err := f.mirror.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Jan Kowalski, 5 years experience", snap.ResumeText)
	assert.Equal(t, "jan@example.com", snap.Email)
	assert.Equal(t, session.PlanGold, snap.Plan)
}

func TestUpdate_DebouncedWriteCoalesces(t *testing.T) {
	st := store.NewMemory()
	backend := mirror.NewMemoryBackend()
	mir := mirror.New(backend)
	mgr := New(st, mir, recovery.New(st, mir), WithDebounce(50*time.Millisecond))
	mgr.Initialize(context.Background(), Params{})

	require.NoError(t, mgr.Update(Partial{ResumeText: strPtr("draft one")}))
	require.NoError(t, mgr.Update(Partial{ResumeText: strPtr("draft two")}))

	// Nothing mirrored yet while the debounce window is open.
	assert.Equal(t, 0, backend.Len())

	mgr.Flush()
	snap, err := mir.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "draft two", snap.ResumeText)
}

func TestUpdate_RejectedWhenUnrecoverable(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background(), Params{SessionID: "test_missing"})
	require.Equal(t, PhaseUnrecoverable, f.manager.Phase())

	err := f.manager.Update(Partial{ResumeText: strPtr("cv")})
	assert.Error(t, err)
}

func TestPay_SavesOnceAndReturnsCanonicalID(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background(), Params{})
	require.NoError(t, f.manager.Update(Partial{
		ResumeText: strPtr("Jan Kowalski, 5 years experience"),
		Email:      strPtr("jan@example.com"),
		Plan:       planPtr(session.PlanGold),
	}))

	id, err := f.manager.Pay(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^sess_\d{13}_[a-f0-9]{32}$`, id)

	// Round trip through the store.
	saved, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Jan Kowalski, 5 years experience", saved.ResumeText)
	assert.Equal(t, session.PlanGold, saved.Plan)
	assert.Equal(t, session.PaymentPending, saved.PaymentStatus)
}

func TestPay_ValidationFailureSurfacesSynchronously(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background(), Params{})
	require.NoError(t, f.manager.Update(Partial{ResumeText: strPtr("cv only, no email")}))

	_, err := f.manager.Pay(context.Background())
	var verr *session.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, f.store.Len())
}

func TestReset_ClearsStateAndMirror(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background(), Params{})
	require.NoError(t, f.manager.Update(Partial{
		ResumeText: strPtr("cv"),
		Email:      strPtr("jan@example.com"),
	}))

	f.manager.Reset()

	assert.Equal(t, PhaseEmpty, f.manager.Phase())
	assert.Equal(t, 0, f.backend.Len())
	rec := f.manager.Record()
	assert.Empty(t, rec.ResumeText)
	assert.Equal(t, session.PlanBasic, rec.Plan)
}
