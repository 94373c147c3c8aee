package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeCorpus backs both the Catalog and Index interfaces with an
// in-memory keyword corpus. Index candidate selection is deliberately
// crude (any positive term value appears as a substring of any
// keyword): the executor must treat candidates as a superset and do the
// real filtering itself.
type fakeCorpus struct {
	mu       sync.Mutex
	ids      []string
	keywords map[string][]string
	gate     chan struct{} // when set, QueryIndex blocks until closed
}

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{keywords: make(map[string][]string)}
}

func (c *fakeCorpus) add(id string, keywords ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	c.keywords[id] = keywords
}

func (c *fakeCorpus) QueryIndex(_ context.Context, ftsQuery string, offset, limit int) ([]string, int, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var hits []string
	for _, id := range c.ids {
		joined := strings.Join(c.keywords[id], " ")
		if strings.Contains(joined, strings.ToLower(extractFirstLiteral(ftsQuery))) {
			hits = append(hits, id)
		}
	}
	total := len(hits)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return hits[offset:end], total, nil
}

// extractFirstLiteral pulls the first quoted literal out of a MATCH
// expression; enough fidelity for a candidate superset.
func extractFirstLiteral(ftsQuery string) string {
	parts := strings.SplitN(ftsQuery, `"`, 3)
	if len(parts) < 2 {
		return ftsQuery
	}
	return parts[1]
}

func (c *fakeCorpus) RecentFileIDs(_ context.Context, offset, limit int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset >= len(c.ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(c.ids) {
		end = len(c.ids)
	}
	return append([]string(nil), c.ids[offset:end]...), nil
}

func (c *fakeCorpus) CountLiveFiles(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids), nil
}

func (c *fakeCorpus) NormKeywordsForFiles(_ context.Context, ids []string) (map[string][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(ids))
	for _, id := range ids {
		out[id] = c.keywords[id]
	}
	return out, nil
}

func newTestExecutor(t *testing.T, corpus *fakeCorpus) *Executor {
	t.Helper()
	e := NewExecutor(corpus, corpus, 2*time.Second, time.Hour)
	t.Cleanup(e.Close)
	return e
}

func TestQuerySync(t *testing.T) {
	corpus := newFakeCorpus()
	corpus.add("f1", "beach", "sunset")
	corpus.add("f2", "beach", "outdoor")
	corpus.add("f3", "studio")
	e := newTestExecutor(t, corpus)

	page, err := e.Query(context.Background(), Parse("beach -outdoor"), 0, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.IDs) != 1 || page.IDs[0] != "f1" {
		t.Errorf("ids = %v, want [f1]", page.IDs)
	}
	if page.Total != 1 {
		t.Errorf("total = %d, want 1", page.Total)
	}
	if page.TotalAll != 3 {
		t.Errorf("total_all = %d, want 3", page.TotalAll)
	}
	if page.NextCursor != nil {
		t.Errorf("next_cursor = %v, want nil on exhausted result", *page.NextCursor)
	}
}

func TestQueryEmptyReturnsRecent(t *testing.T) {
	corpus := newFakeCorpus()
	for i := 0; i < 5; i++ {
		corpus.add(fmt.Sprintf("f%d", i), "keyword")
	}
	e := newTestExecutor(t, corpus)

	page, err := e.Query(context.Background(), Parse(""), 0, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.IDs) != 3 {
		t.Fatalf("ids = %v, want 3 items", page.IDs)
	}
	if page.NextCursor == nil || *page.NextCursor != 3 {
		t.Errorf("next_cursor = %v, want 3", page.NextCursor)
	}

	rest, err := e.Query(context.Background(), Parse(""), 3, 3)
	if err != nil {
		t.Fatalf("Query offset 3: %v", err)
	}
	if len(rest.IDs) != 2 {
		t.Errorf("second page ids = %v, want 2 items", rest.IDs)
	}
	if rest.NextCursor != nil {
		t.Errorf("second page next_cursor = %v, want nil", *rest.NextCursor)
	}
}

func TestStartJobReturnsFirstPageImmediately(t *testing.T) {
	corpus := newFakeCorpus()
	corpus.add("f1", "beach")
	corpus.add("f2", "beach")
	e := newTestExecutor(t, corpus)

	job, err := e.StartJob(context.Background(), Parse("beach"), 10)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	page := job.Fetch(context.Background(), 0, 10)
	if len(page.IDs) != 2 {
		t.Errorf("first page = %v, want both files", page.IDs)
	}

	if _, ok := e.Job(job.ID); !ok {
		t.Error("job should be registered for later fetches")
	}
	if _, ok := e.Job("no-such-job"); ok {
		t.Error("unknown job id should not resolve")
	}
}

func TestJobPagesAreStable(t *testing.T) {
	corpus := newFakeCorpus()
	for i := 0; i < 1200; i++ {
		corpus.add(fmt.Sprintf("f%04d", i), "beach")
	}
	e := newTestExecutor(t, corpus)

	job, err := e.StartJob(context.Background(), Parse("beach"), 50)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	waitCompleted(t, job)

	// Concatenating every page yields total unique items in stable order.
	var all []string
	offset := 0
	for {
		page := job.Fetch(context.Background(), offset, 100)
		all = append(all, page.IDs...)
		if page.NextCursor == nil {
			break
		}
		offset = *page.NextCursor
	}
	if len(all) != 1200 {
		t.Fatalf("concatenated pages yield %d items, want 1200", len(all))
	}
	seen := make(map[string]bool, len(all))
	for _, id := range all {
		if seen[id] {
			t.Fatalf("duplicate item %s across pages", id)
		}
		seen[id] = true
	}

	// Re-fetching the same offset returns identical content.
	first := job.Fetch(context.Background(), 100, 50)
	second := job.Fetch(context.Background(), 100, 50)
	for i := range first.IDs {
		if first.IDs[i] != second.IDs[i] {
			t.Fatalf("page content changed between fetches at index %d", i)
		}
	}
}

func TestJobStatusProbe(t *testing.T) {
	corpus := newFakeCorpus()
	corpus.add("f1", "beach")
	e := newTestExecutor(t, corpus)

	job, err := e.StartJob(context.Background(), Parse("beach"), 10)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitCompleted(t, job)

	status, totalFound, totalAll := job.Status()
	if status != JobCompleted {
		t.Errorf("status = %s, want %s", status, JobCompleted)
	}
	if totalFound != 1 {
		t.Errorf("total_found = %d, want 1", totalFound)
	}
	if totalAll != 1 {
		t.Errorf("total_all = %d, want 1", totalAll)
	}
}

func TestFetchTimesOutWithPartialPage(t *testing.T) {
	corpus := newFakeCorpus()
	corpus.add("f1", "beach")
	gate := make(chan struct{})
	corpus.gate = gate

	e := NewExecutor(corpus, corpus, 50*time.Millisecond, time.Hour)
	defer e.Close()
	defer close(gate)

	// StartJob itself would block on the gated index, so drive an
	// unregistered job the way StartJob does, minus the sync fill.
	job := e.newJob(Parse("beach"))
	go job.populate()

	start := time.Now()
	page := job.Fetch(context.Background(), 0, 10)
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("fetch returned after %v, expected it to wait out the timeout", elapsed)
	}
	if len(page.IDs) != 0 {
		t.Errorf("partial page = %v, want empty before discovery", page.IDs)
	}
}

func TestEvictIdleJobs(t *testing.T) {
	corpus := newFakeCorpus()
	corpus.add("f1", "beach")
	e := NewExecutor(corpus, corpus, time.Second, time.Nanosecond)
	defer e.Close()

	job, err := e.StartJob(context.Background(), Parse("beach"), 10)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitCompleted(t, job)

	time.Sleep(5 * time.Millisecond)
	e.evictIdle()

	if _, ok := e.Job(job.ID); ok {
		t.Error("idle job should have been evicted")
	}
}

func waitCompleted(t *testing.T, job *Job) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status, _, _ := job.Status(); status == JobCompleted {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("job never completed")
}
