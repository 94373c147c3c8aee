package runs

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"photo-archive/internal/logging"
	"photo-archive/internal/metrics"
)

// Kind identifies one family of maintenance run. At most one non-terminal
// run of each kind exists at any time.
type Kind string

const (
	KindScan           Kind = "scan"
	KindPreview        Kind = "preview"
	KindOrphanCleanup  Kind = "orphan_cleanup"
	KindShotAtBackfill Kind = "shot_at_backfill"
	KindReindex        Kind = "reindex"
)

// Status is the closed set of run states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal runs are
// immutable; a new run of the same kind may then be started.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ErrCancelled is returned by workers that stop because the cooperative
// cancellation flag was observed.
var ErrCancelled = errors.New("run cancelled")

// ScanCounters tracks catalog scan progress. Every counter is
// monotonically non-decreasing while the run is running.
type ScanCounters struct {
	Scanned  int64 `json:"scanned"`
	Created  int64 `json:"created"`
	Updated  int64 `json:"updated"`
	Restored int64 `json:"restored"`
	Deleted  int64 `json:"deleted"`
}

// PreviewCounters tracks preview generation progress. Round is
// non-decreasing and MissingPreviews non-increasing until terminal.
type PreviewCounters struct {
	Round           int64   `json:"round"`
	MaxRounds       int64   `json:"max_rounds"`
	TotalFiles      int64   `json:"total_files"`
	TotalPreviews   int64   `json:"total_previews"`
	MissingPreviews int64   `json:"missing_previews"`
	Progress        float64 `json:"progress"`
}

// OrphanCounters tracks orphan preview cleanup. Processed reaches
// TotalOrphans exactly at completion; Deleted never exceeds Processed.
type OrphanCounters struct {
	TotalOrphans int64 `json:"total_orphans"`
	Processed    int64 `json:"processed"`
	Deleted      int64 `json:"deleted"`
}

// BackfillCounters tracks the shot-at metadata backfill.
type BackfillCounters struct {
	Scanned int64 `json:"scanned"`
	Total   int64 `json:"total"`
	Updated int64 `json:"updated"`
}

// ReindexCounters tracks the search index rebuild.
type ReindexCounters struct {
	Count int64 `json:"count"`
}

// Run is one tracked instance of a maintenance job. Exactly one of the
// counter pointers is non-nil, matching Kind. Snapshots handed to
// pollers are deep copies; the worker never mutates a published Run.
type Run struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`

	Scan     *ScanCounters     `json:"scan,omitempty"`
	Preview  *PreviewCounters  `json:"preview,omitempty"`
	Orphan   *OrphanCounters   `json:"orphan,omitempty"`
	Backfill *BackfillCounters `json:"backfill,omitempty"`
	Reindex  *ReindexCounters  `json:"reindex,omitempty"`
}

// Terminal reports whether the run has reached a final state.
func (r Run) Terminal() bool {
	return r.Status.Terminal()
}

// clone deep-copies the run so readers never share counter memory with
// the writer.
func (r Run) clone() Run {
	out := r
	if r.Scan != nil {
		c := *r.Scan
		out.Scan = &c
	}
	if r.Preview != nil {
		c := *r.Preview
		out.Preview = &c
	}
	if r.Orphan != nil {
		c := *r.Orphan
		out.Orphan = &c
	}
	if r.Backfill != nil {
		c := *r.Backfill
		out.Backfill = &c
	}
	if r.Reindex != nil {
		c := *r.Reindex
		out.Reindex = &c
	}
	return out
}

func newRun(kind Kind) Run {
	run := Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	switch kind {
	case KindScan:
		run.Scan = &ScanCounters{}
	case KindPreview:
		run.Preview = &PreviewCounters{}
	case KindOrphanCleanup:
		run.Orphan = &OrphanCounters{}
	case KindShotAtBackfill:
		run.Backfill = &BackfillCounters{}
	case KindReindex:
		run.Reindex = &ReindexCounters{}
	}
	return run
}

// Tracker is the handle a worker uses to publish progress and observe
// cancellation. Exactly one goroutine (the worker) calls Update; any
// number of pollers call Snapshot concurrently.
type Tracker struct {
	kind      Kind
	cancelled atomic.Bool
	writeMu   sync.Mutex
	snap      atomic.Value // Run
}

func newTracker(kind Kind) *Tracker {
	t := &Tracker{kind: kind}
	t.snap.Store(newRun(kind))
	return t
}

// ID returns the run id.
func (t *Tracker) ID() string {
	return t.Snapshot().ID
}

// Cancelled reports whether cancellation has been requested. Workers
// must check this at bounded intervals (per item or per batch).
func (t *Tracker) Cancelled() bool {
	return t.cancelled.Load()
}

// Snapshot returns an atomic copy of the run. Readers never observe a
// partially-updated counter set.
func (t *Tracker) Snapshot() Run {
	return t.snap.Load().(Run).clone()
}

// Update applies fn to a copy of the run and publishes the result.
// Updates after the run reached a terminal state are dropped: terminal
// runs are immutable.
func (t *Tracker) Update(fn func(*Run)) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	current := t.snap.Load().(Run)
	if current.Terminal() {
		return
	}
	next := current.clone()
	fn(&next)
	next.UpdatedAt = time.Now()
	t.snap.Store(next)
}

// setStatus transitions the run, stamping FinishedAt on terminal states.
func (t *Tracker) setStatus(status Status, errMsg string) {
	t.Update(func(r *Run) {
		r.Status = status
		r.Error = errMsg
		if status.Terminal() {
			r.FinishedAt = time.Now()
		}
	})
}

// Registry enforces the one-active-run-per-kind invariant and retains
// the most recent run of each kind for status polling.
type Registry struct {
	mu      sync.Mutex
	current map[Kind]*Tracker
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{current: make(map[Kind]*Tracker)}
}

// Worker performs the actual work of a run, reporting progress through
// the tracker. A nil return completes the run, ErrCancelled cancels it,
// any other error fails it.
type Worker func(t *Tracker) error

// Start begins a run of the given kind, or returns the existing active
// run. The boolean is true when a new run was started. Triggering is
// idempotent: concurrent Start calls for the same kind serialize on the
// registry mutex, so exactly one new run is created.
func (reg *Registry) Start(kind Kind, worker Worker) (Run, bool) {
	reg.mu.Lock()
	if existing, ok := reg.current[kind]; ok {
		snap := existing.Snapshot()
		if !snap.Terminal() {
			reg.mu.Unlock()
			return snap, false
		}
	}

	t := newTracker(kind)
	reg.current[kind] = t
	reg.mu.Unlock()

	metrics.RunsStartedTotal.WithLabelValues(string(kind)).Inc()

	go reg.runWorker(t, worker)

	return t.Snapshot(), true
}

func (reg *Registry) runWorker(t *Tracker, worker Worker) {
	start := time.Now()
	t.setStatus(StatusRunning, "")
	metrics.RunActive.WithLabelValues(string(t.kind)).Set(1)
	logging.Info("Run started: kind=%s id=%s", t.kind, t.ID())

	err := worker(t)

	var status Status
	var errMsg string
	switch {
	case err == nil && t.Cancelled():
		// Worker observed the flag and returned cleanly.
		status = StatusCancelled
	case err == nil:
		status = StatusCompleted
	case errors.Is(err, ErrCancelled):
		status = StatusCancelled
	default:
		status = StatusFailed
		errMsg = err.Error()
	}
	t.setStatus(status, errMsg)

	duration := time.Since(start)
	metrics.RunActive.WithLabelValues(string(t.kind)).Set(0)
	metrics.RunsFinishedTotal.WithLabelValues(string(t.kind), string(status)).Inc()
	metrics.RunDuration.WithLabelValues(string(t.kind)).Observe(duration.Seconds())

	if status == StatusFailed {
		logging.Error("Run failed: kind=%s id=%s after %v: %s", t.kind, t.ID(), duration, errMsg)
	} else {
		logging.Info("Run %s: kind=%s id=%s after %v", status, t.kind, t.ID(), duration)
	}
}

// Status returns a snapshot of the most recent run of the given kind.
// The boolean is false when no run of that kind has ever been started.
func (reg *Registry) Status(kind Kind) (Run, bool) {
	reg.mu.Lock()
	t, ok := reg.current[kind]
	reg.mu.Unlock()

	if !ok {
		return Run{}, false
	}
	return t.Snapshot(), true
}

// Active reports whether a non-terminal run of the given kind exists.
func (reg *Registry) Active(kind Kind) bool {
	run, ok := reg.Status(kind)
	return ok && !run.Terminal()
}

// Cancel requests cooperative cancellation of the active run of the
// given kind. It is a no-op (returning false) when no run is active;
// double-cancel is harmless.
func (reg *Registry) Cancel(kind Kind) bool {
	reg.mu.Lock()
	t, ok := reg.current[kind]
	reg.mu.Unlock()

	if !ok {
		return false
	}
	if t.Snapshot().Terminal() {
		return false
	}

	t.cancelled.Store(true)
	logging.Info("Run cancellation requested: kind=%s id=%s", kind, t.ID())
	return true
}
