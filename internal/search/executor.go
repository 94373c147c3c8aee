package search

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"photo-archive/internal/logging"
	"photo-archive/internal/metrics"
)

// JobStatus is the lifecycle state of a search job. Unlike maintenance
// runs, search jobs cannot fail or be cancelled: errors mid-population
// simply end discovery early with whatever was found.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
)

const (
	// scanChunk is how many index candidates one population step pulls.
	// It bounds both memory per step and fetch wakeup latency.
	scanChunk = 500

	defaultFetchTimeout = 25 * time.Second
	defaultJobTTL       = time.Hour
	janitorInterval     = time.Minute
)

// Index produces candidate file ids for a full-text expression.
// *database.Database satisfies it.
type Index interface {
	QueryIndex(ctx context.Context, ftsQuery string, offset, limit int) ([]string, int, error)
}

// Catalog supplies the file facts the executor evaluates candidates
// against. *database.Database satisfies it.
type Catalog interface {
	RecentFileIDs(ctx context.Context, offset, limit int) ([]string, error)
	CountLiveFiles(ctx context.Context) (int, error)
	NormKeywordsForFiles(ctx context.Context, ids []string) (map[string][]string, error)
}

// Executor runs parsed queries against the index, synchronously for
// one-shot searches and via progressively-populated jobs for async
// clients. Jobs are in-memory only; a restart forgets them.
type Executor struct {
	catalog      Catalog
	index        Index
	fetchTimeout time.Duration
	jobTTL       time.Duration

	mu   sync.Mutex
	jobs map[string]*Job

	stop     chan struct{}
	stopOnce sync.Once
}

// NewExecutor returns an executor and starts its job janitor.
func NewExecutor(catalog Catalog, index Index, fetchTimeout, jobTTL time.Duration) *Executor {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if jobTTL <= 0 {
		jobTTL = defaultJobTTL
	}
	e := &Executor{
		catalog:      catalog,
		index:        index,
		fetchTimeout: fetchTimeout,
		jobTTL:       jobTTL,
		jobs:         make(map[string]*Job),
		stop:         make(chan struct{}),
	}
	go e.janitor()
	return e
}

// Close stops the janitor. In-flight jobs finish on their own.
func (e *Executor) Close() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Page is one window of search results.
type Page struct {
	IDs        []string
	Total      int  // matches discovered so far
	TotalAll   int  // live corpus size
	NextCursor *int // nil when no further page is known to exist
}

// Query runs a synchronous search: candidates are scanned until the
// requested window plus one item is filled (the extra item proves a
// next page exists) or the corpus is exhausted.
func (e *Executor) Query(ctx context.Context, q ParsedQuery, offset, limit int) (Page, error) {
	start := time.Now()
	j := e.newJob(q)
	for !j.exhausted && len(j.items) <= offset+limit {
		if err := j.step(ctx); err != nil {
			return Page{}, err
		}
	}
	if j.exhausted {
		j.finish()
	}
	metrics.SearchQueriesTotal.WithLabelValues("sync").Inc()
	metrics.SearchQueryDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds())
	return j.page(offset, limit), nil
}

// StartJob begins an async search. The first page is populated
// synchronously so the caller gets immediate results plus a job id;
// discovery then continues in the background.
func (e *Executor) StartJob(ctx context.Context, q ParsedQuery, pageSize int) (*Job, error) {
	start := time.Now()
	j := e.newJob(q)
	for !j.exhausted && len(j.items) < pageSize {
		if err := j.step(ctx); err != nil {
			return nil, err
		}
	}
	if j.exhausted {
		j.finish()
	}

	e.mu.Lock()
	e.jobs[j.ID] = j
	metrics.SearchJobsActive.Set(float64(len(e.jobs)))
	e.mu.Unlock()

	if !j.exhausted {
		go j.populate()
	}

	metrics.SearchQueriesTotal.WithLabelValues("async").Inc()
	metrics.SearchQueryDuration.WithLabelValues("async").Observe(time.Since(start).Seconds())
	return j, nil
}

// Job returns a registered job by id.
func (e *Executor) Job(id string) (*Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	if ok {
		j.touch()
	}
	return j, ok
}

// FetchTimeout is how long a blocking fetch waits before returning a
// partial page.
func (e *Executor) FetchTimeout() time.Duration {
	return e.fetchTimeout
}

func (e *Executor) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.evictIdle()
		}
	}
}

func (e *Executor) evictIdle() {
	cutoff := time.Now().Add(-e.jobTTL)
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, j := range e.jobs {
		if j.idleSince().Before(cutoff) {
			delete(e.jobs, id)
			metrics.SearchJobsEvicted.Inc()
			logging.Debug("Evicted idle search job %s", id)
		}
	}
	metrics.SearchJobsActive.Set(float64(len(e.jobs)))
}

// Job is one progressively-populated search. Items are append-only and
// index-stable: once an id is assigned a position it keeps it, so pages
// re-fetched at the same offset return identical content.
type Job struct {
	ID    string
	Query ParsedQuery

	e *Executor

	mu         sync.Mutex
	items      []string
	status     JobStatus
	totalAll   int
	changed    chan struct{}
	lastAccess time.Time

	// population state, touched only by the single populating
	// goroutine (or the synchronous caller before it starts)
	seen       map[string]bool
	scanOffset int
	exhausted  bool
}

func (e *Executor) newJob(q ParsedQuery) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Query:      q,
		e:          e,
		status:     JobRunning,
		changed:    make(chan struct{}),
		lastAccess: time.Now(),
		seen:       make(map[string]bool),
	}
}

// step pulls one candidate chunk, filters it, and appends the matches.
// Steps are never concurrent for a given job.
func (j *Job) step(ctx context.Context) error {
	var candidates []string
	var err error
	if j.Query.HasPositive() {
		candidates, _, err = j.e.index.QueryIndex(ctx, j.Query.FTSQuery(), j.scanOffset, scanChunk)
	} else {
		candidates, err = j.e.catalog.RecentFileIDs(ctx, j.scanOffset, scanChunk)
	}
	if err != nil {
		j.exhausted = true
		return err
	}
	if j.totalAll == 0 {
		if total, err := j.e.catalog.CountLiveFiles(ctx); err == nil {
			j.setTotalAll(total)
		}
	}

	j.scanOffset += len(candidates)
	if len(candidates) < scanChunk {
		j.exhausted = true
	}
	if len(candidates) == 0 {
		return nil
	}

	keywords, err := j.e.catalog.NormKeywordsForFiles(ctx, candidates)
	if err != nil {
		j.exhausted = true
		return err
	}

	var matched []string
	for _, id := range candidates {
		if j.seen[id] {
			continue
		}
		if j.Query.Match(keywords[id]) {
			j.seen[id] = true
			matched = append(matched, id)
		}
	}
	if len(matched) > 0 {
		j.append(matched)
	}
	return nil
}

// populate drives the job to completion in the background.
func (j *Job) populate() {
	ctx := context.Background()
	for !j.exhausted {
		if err := j.step(ctx); err != nil {
			logging.Warn("Search job %s: population stopped: %v", j.ID, err)
			break
		}
	}
	j.finish()
}

func (j *Job) append(ids []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items = append(j.items, ids...)
	j.broadcastLocked()
}

func (j *Job) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == JobCompleted {
		return
	}
	j.status = JobCompleted
	j.broadcastLocked()
}

func (j *Job) setTotalAll(n int) {
	j.mu.Lock()
	j.totalAll = n
	j.mu.Unlock()
}

// broadcastLocked wakes every blocked Fetch. Callers hold j.mu.
func (j *Job) broadcastLocked() {
	close(j.changed)
	j.changed = make(chan struct{})
}

func (j *Job) touch() {
	j.mu.Lock()
	j.lastAccess = time.Now()
	j.mu.Unlock()
}

func (j *Job) idleSince() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastAccess
}

// Fetch returns the items at [offset, offset+limit). If discovery has
// not reached that far yet it blocks until enough items exist, the job
// completes, or the executor's fetch timeout elapses; on timeout the
// partial page is returned rather than an error.
func (j *Job) Fetch(ctx context.Context, offset, limit int) Page {
	deadline := time.NewTimer(j.e.fetchTimeout)
	defer deadline.Stop()

	for {
		j.mu.Lock()
		j.lastAccess = time.Now()
		if len(j.items) >= offset+limit || j.status == JobCompleted {
			p := j.pageLocked(offset, limit)
			j.mu.Unlock()
			return p
		}
		ch := j.changed
		j.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return j.page(offset, limit)
		case <-ctx.Done():
			return j.page(offset, limit)
		}
	}
}

// Status is the cheap polling probe.
func (j *Job) Status() (JobStatus, int, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastAccess = time.Now()
	return j.status, len(j.items), j.totalAll
}

func (j *Job) page(offset, limit int) Page {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pageLocked(offset, limit)
}

func (j *Job) pageLocked(offset, limit int) Page {
	total := len(j.items)
	p := Page{Total: total, TotalAll: j.totalAll}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return p
	}
	end := offset + limit
	if end > total {
		end = total
	}
	if offset < total {
		p.IDs = append([]string(nil), j.items[offset:end]...)
	}
	// A next page exists when more items are already known, or could
	// still be discovered.
	if end < total || (j.status == JobRunning && end == total) {
		next := end
		p.NextCursor = &next
	}
	return p
}
