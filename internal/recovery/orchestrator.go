// Package recovery implements the fallback chain that reconciles server and
// browser-local state when the success page loads after a payment redirect.
package recovery

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jonathan/cvperfect-sessions/internal/mirror"
	"github.com/jonathan/cvperfect-sessions/internal/session"
	"github.com/jonathan/cvperfect-sessions/internal/store"
)

// Source identifies where recovered data came from.
type Source string

const (
	// SourceStore means the session store returned the authoritative,
	// payment-correlated record.
	SourceStore Source = "store"
	// SourceMirror means the browser-local mirror supplied the data; the
	// payment correlation is unconfirmed.
	SourceMirror Source = "mirror"
	// SourceNone means nothing could be recovered.
	SourceNone Source = "none"
)

// Notice is the user-visible, non-blocking recovery notification. The two
// messages set different expectations: a server restore is payment-confirmed,
// a browser recovery is best-effort.
type Notice struct {
	Source  Source
	Message string
}

const (
	noticeRestoredFromServer  = "Your session was restored."
	noticeRestoredFromBrowser = "Your data was recovered from this browser."
)

// Result is the outcome of one orchestrator run. Exactly one of Record and
// Snapshot is populated unless Source is SourceNone.
type Result struct {
	Source   Source
	Record   *session.Record
	Snapshot mirror.Snapshot
	Notice   *Notice
}

// Unrecoverable reports whether the run exhausted every fallback.
func (r Result) Unrecoverable() bool {
	return r.Source == SourceNone
}

// Metrics receives recovery outcomes. The Prometheus collector implements
// it; tests pass a stub.
type Metrics interface {
	RecordRecovery(source string)
	RecordLookupError(err error)
}

// nopMetrics is used when no collector is wired.
type nopMetrics struct{}

func (nopMetrics) RecordRecovery(string)   {}
func (nopMetrics) RecordLookupError(error) {}

// Orchestrator runs the ordered, short-circuiting fallback sequence:
// session store by id, then local mirror, then unrecoverable. Server data
// always wins over the mirror because only the server path correlates with
// a confirmed payment.
type Orchestrator struct {
	store        store.Store
	mirror       *mirror.Mirror
	metrics      Metrics
	storeTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStoreTimeout bounds the store lookup. A timeout is treated exactly
// like StoreUnavailable: fall through to the mirror.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.storeTimeout = d }
}

// WithMetrics wires a metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// DefaultStoreTimeout bounds the single store call per page load.
const DefaultStoreTimeout = 5 * time.Second

// New returns an Orchestrator over the given store and mirror.
func New(st store.Store, mir *mirror.Mirror, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        st,
		mirror:       mir,
		metrics:      nopMetrics{},
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the fallback chain for the session id carried on the return
// URL (empty when the URL had none). It never returns a store error; every
// lookup failure becomes the next fallback step, and only a fully exhausted
// chain yields an unrecoverable Result. A mirror whose keys are present but
// all blank counts as exhausted: there is nothing worth re-applying. Cleanup (mirror clear) happens
// exactly once, inside the successful mirror branch, which makes a second
// run naturally idempotent: the mirror is already empty and no notice is
// re-emitted.
func (o *Orchestrator) Run(ctx context.Context, rawID string) Result {
	if rawID != "" {
		if rec, ok := o.lookupStore(ctx, rawID); ok {
			o.metrics.RecordRecovery(string(SourceStore))
			return Result{
				Source: SourceStore,
				Record: rec,
				Notice: &Notice{Source: SourceStore, Message: noticeRestoredFromServer},
			}
		}
	}

	snap, err := o.mirror.ReadAll()
	if err == nil && !snap.Empty() {
		o.mirror.Clear()
		o.metrics.RecordRecovery(string(SourceMirror))
		return Result{
			Source:   SourceMirror,
			Snapshot: snap,
			Notice:   &Notice{Source: SourceMirror, Message: noticeRestoredFromBrowser},
		}
	}

	o.metrics.RecordRecovery(string(SourceNone))
	return Result{Source: SourceNone}
}

// lookupStore performs the bounded store call. Ids that fail format parsing
// never reach the backend; every failure class falls through identically.
func (o *Orchestrator) lookupStore(ctx context.Context, rawID string) (*session.Record, bool) {
	if _, err := session.ParseID(rawID); err != nil {
		o.metrics.RecordLookupError(err)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	defer cancel()

	rec, err := o.store.Get(ctx, rawID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = session.Unavailable(err)
		}
		o.metrics.RecordLookupError(err)
		if !session.Recoverable(err) && !errors.Is(err, session.ErrStoreUnavailable) {
			log.Printf("unexpected session lookup error for %s: %v", rawID, err)
		}
		return nil, false
	}
	return rec, true
}
