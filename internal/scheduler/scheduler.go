// Package scheduler runs news ingestion for a watchlist on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
)

// Runner is the ingestion entry point; *news.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, symbols []string, limit int) (models.Result[[]models.AnalyzedArticle], models.BatchReport)
}

// Scheduler fetches news for a fixed watchlist on every cron tick. A tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron      *cron.Cron
	runner    Runner
	watchlist []string
	limit     int
	timeout   time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	last    models.BatchReport
}

// New creates a scheduler in UTC. timeout bounds a single run; zero means
// no bound.
func New(runner Runner, watchlist []string, limit int, timeout time.Duration, logger *log.Logger) *Scheduler {
	logger = infra.OrNop(logger)
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:    runner,
		watchlist: append([]string(nil), watchlist...),
		limit:     limit,
		timeout:   timeout,
		logger:    logger,
	}
}

// Schedule installs the ingestion job under a standard five-field cron
// expression or a descriptor such as "@every 1h". A previous schedule is
// replaced.
func (s *Scheduler) Schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
	id, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("adding cron entry %q: %w", spec, err)
	}
	s.entryID = id
	s.logger.Info().Str("cron", spec).Strs("watchlist", s.watchlist).Int("limit", s.limit).Msg("news ingestion scheduled")
	return nil
}

// RunOnce performs one ingestion pass immediately and returns its report.
func (s *Scheduler) RunOnce(ctx context.Context) models.BatchReport {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, report := s.runner.Run(ctx, s.watchlist, s.limit)
	if res.Failed() {
		s.logger.Warn().Str("run_id", report.RunID).Str("reason", res.Reason).Msg("scheduled ingestion produced no articles")
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report
}

// Last returns the report of the most recent run.
func (s *Scheduler) Last() models.BatchReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Next returns the next scheduled run time, or zero when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start begins the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out with a job still running")
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Str("details", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Str("details", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}
