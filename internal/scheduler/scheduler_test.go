package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketlens/pkg/models"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	symbols []string
	limit   int
	fail    bool
}

func (f *fakeRunner) Run(ctx context.Context, symbols []string, limit int) (models.Result[[]models.AnalyzedArticle], models.BatchReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.symbols = symbols
	f.limit = limit
	report := models.BatchReport{RunID: "run-1", Symbols: symbols, Fetched: 3, Persisted: 2}
	if f.fail {
		return models.EmptyWith([]models.AnalyzedArticle{}, "provider down"), report
	}
	return models.OK([]models.AnalyzedArticle{{ID: 1}, {ID: 2}}), report
}

func TestRunOnce(t *testing.T) {
	r := &fakeRunner{}
	watch := []string{"AAPL", "MSFT"}
	s := New(r, watch, 5, time.Second, nil)
	watch[0] = "MUTATED"

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []string{"AAPL", "MSFT"}, r.symbols)
	assert.Equal(t, 5, r.limit)
	assert.Equal(t, 2, report.Persisted)
	assert.Equal(t, report, s.Last())
}

func TestRunOnceFailureIsRecorded(t *testing.T) {
	s := New(&fakeRunner{fail: true}, []string{"AAPL"}, 5, 0, nil)
	report := s.RunOnce(context.Background())
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "run-1", s.Last().RunID)
}

func TestSchedule(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, []string{"AAPL"}, 5, 0, nil)

	assert.True(t, s.Next().IsZero())
	require.Error(t, s.Schedule("not a cron"))

	require.NoError(t, s.Schedule("*/30 * * * *"))
	require.NoError(t, s.Schedule("@every 1h"))
	entries := s.cron.Entries()
	require.Len(t, entries, 1, "rescheduling replaces the previous entry")

	// Invoke the wrapped job directly instead of waiting for a tick.
	entries[0].WrappedJob.Run()
	assert.Equal(t, 1, r.calls)
}

func TestStartStop(t *testing.T) {
	s := New(&fakeRunner{}, []string{"AAPL"}, 5, 0, nil)
	require.NoError(t, s.Schedule("@every 1h"))
	s.Start()
	assert.False(t, s.Next().IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
