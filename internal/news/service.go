// Package news implements the news pipeline: fetching raw articles from a
// provider, normalizing and scoring them, persisting them and answering
// read-side queries. Every public operation contains its own failures and
// reports them as an empty result with a reason.
package news

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

// Defaults for read-side windows.
const (
	DefaultSummaryDays  = 7
	DefaultTrendingDays = 7
	TrendingLimit       = 10
)

// ErrDuplicate is returned by stores when an article is already persisted.
var ErrDuplicate = errors.New("article already stored")

// Store persists analyzed articles and answers queries over them.
type Store interface {
	Save(ctx context.Context, article *models.AnalyzedArticle) (int64, error)
	QueryByRange(ctx context.Context, q models.RangeQuery) ([]models.AnalyzedArticle, int, error)
	Search(ctx context.Context, q models.SearchQuery) ([]models.AnalyzedArticle, int, error)
	DailySentimentSummary(ctx context.Context, day time.Time, symbol string) (models.SentimentSummary, error)
	SentimentSummary(ctx context.Context, from, to time.Time, symbol string) (models.SentimentSummary, error)
	TrendingTopics(ctx context.Context, from, to time.Time, limit int) ([]models.TopicStat, error)
	Close() error
}

// Notifier is told about every completed ingestion batch.
type Notifier interface {
	BatchCompleted(report models.BatchReport, articles []models.AnalyzedArticle)
}

// Service coordinates Client → Analyzer → Store.
type Service struct {
	client   *Client
	analyzer *Analyzer
	store    Store
	workers  int
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithWorkers processes up to n articles concurrently. n <= 1 keeps the
// per-article loop sequential.
func WithWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

// WithNotifier registers a batch listener.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for trailing windows.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the pipeline.
func NewService(client *Client, analyzer *Analyzer, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		client:   client,
		analyzer: analyzer,
		store:    store,
		workers:  1,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = infra.OrNop(s.logger)
	return s
}

// SetNotifier registers a batch listener after construction.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// contain converts a panic into an empty result with a reason.
func contain[T any](logger *log.Logger, op string, fallback T, res *models.Result[T]) {
	if p := recover(); p != nil {
		logger.Error().Str("op", op).Str("panic", fmt.Sprint(p)).Str("stack", string(debug.Stack())).Msg("news operation panicked")
		*res = models.EmptyWith(fallback, "internal error")
	}
}

// FetchAndAnalyze fetches, analyzes and persists news for symbols and
// returns the persisted articles.
func (s *Service) FetchAndAnalyze(ctx context.Context, symbols []string, limit int) models.Result[[]models.AnalyzedArticle] {
	res, _ := s.Run(ctx, symbols, limit)
	return res
}

// Run is FetchAndAnalyze that also returns the batch accounting.
func (s *Service) Run(ctx context.Context, symbols []string, limit int) (res models.Result[[]models.AnalyzedArticle], report models.BatchReport) {
	report = models.BatchReport{RunID: uuid.NewString(), Started: s.now().UTC()}
	defer contain(s.logger, "fetch_and_analyze", []models.AnalyzedArticle{}, &res)

	clean := cleanSymbols(symbols)
	report.Symbols = clean
	if len(clean) == 0 {
		s.logger.Error().Str("run_id", report.RunID).Msg("no symbols provided")
		return models.EmptyWith([]models.AnalyzedArticle{}, "no symbols provided"), report
	}
	if limit <= 0 {
		s.logger.Error().Str("run_id", report.RunID).Int("limit", limit).Msg("invalid limit")
		return models.EmptyWith([]models.AnalyzedArticle{}, fmt.Sprintf("invalid limit %d", limit)), report
	}

	s.logger.Info().Str("run_id", report.RunID).Strs("symbols", clean).Int("limit", limit).Msg("starting news fetch")
	fetched := s.client.Fetch(ctx, clean, limit)
	if fetched.Failed() {
		report.Finished = s.now().UTC()
		s.logger.Warn().Str("run_id", report.RunID).Str("reason", fetched.Reason).Msg("no articles fetched")
		return models.EmptyWith([]models.AnalyzedArticle{}, fetched.Reason), report
	}
	raw := fetched.Value

	results := make([]*models.AnalyzedArticle, len(raw))
	if s.workers > 1 {
		var g errgroup.Group
		g.SetLimit(s.workers)
		for i := range raw {
			g.Go(func() error {
				results[i] = s.process(ctx, report.RunID, i, raw[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range raw {
			results[i] = s.process(ctx, report.RunID, i, raw[i])
		}
	}

	persisted := make([]models.AnalyzedArticle, 0, len(raw))
	for _, a := range results {
		if a != nil {
			persisted = append(persisted, *a)
		}
	}

	report.Fetched = len(raw)
	report.Persisted = len(persisted)
	report.Dropped = report.Fetched - report.Persisted
	if report.Fetched > 0 {
		report.Rate = float64(report.Persisted) / float64(report.Fetched) * 100
	}
	report.Finished = s.now().UTC()

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("persisted", report.Persisted).
		Int("fetched", report.Fetched).
		Float64("success_rate", report.Rate).
		Msgf("processing complete: %d of %d articles processed successfully (%.1f%%)", report.Persisted, report.Fetched, report.Rate)

	if s.notifier != nil {
		s.notifier.BatchCompleted(report, persisted)
	}
	if len(persisted) == 0 {
		return models.EmptyWith(persisted, "no articles persisted"), report
	}
	return models.OK(persisted), report
}

// process moves one raw article through analysis and persistence. A nil
// return means the article was dropped.
func (s *Service) process(ctx context.Context, runID string, idx int, raw models.RawArticle) (out *models.AnalyzedArticle) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().Str("run_id", runID).Int("index", idx).Str("panic", fmt.Sprint(p)).Msg("error processing article")
			out = nil
		}
	}()

	if raw.IsEmpty() {
		s.logger.Warn().Str("run_id", runID).Int("index", idx).Msg("skipping empty article")
		return nil
	}

	analyzed := s.analyzer.Analyze(ctx, raw)
	if analyzed == nil {
		s.logger.Warn().Str("run_id", runID).Int("index", idx).Msg("analysis failed for article")
		return nil
	}
	if missing := analyzed.MissingFields(); len(missing) > 0 {
		s.logger.Warn().Str("run_id", runID).Strs("missing", missing).Msg("article missing required fields")
		return nil
	}

	id, err := s.store.Save(ctx, analyzed)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			s.logger.Info().Str("run_id", runID).Str("title", analyzed.Title).Msg("article already stored")
		} else {
			s.logger.Error().Err(err).Str("run_id", runID).Str("title", analyzed.Title).Msg("failed to save article")
		}
		return nil
	}
	analyzed.ID = id
	return analyzed
}

// GetNewsByDateRange returns one page of articles published on the calendar
// days start through end, inclusive.
func (s *Service) GetNewsByDateRange(ctx context.Context, start, end time.Time, symbol string, page, perPage int) (res models.Result[models.Page]) {
	page, perPage = models.NormalizePaging(page, perPage)
	empty := models.NewPage(nil, 0, page, perPage)
	defer contain(s.logger, "get_news_by_date_range", empty, &res)

	if end.Before(start) {
		return models.EmptyWith(empty, "end date before start date")
	}
	from, to := utils.DateRange(start, end)
	articles, total, err := s.store.QueryByRange(ctx, models.RangeQuery{
		From: from, To: to, Symbol: utils.CanonicalSymbol(symbol), Page: page, PerPage: perPage,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("error getting articles by date range")
		return models.EmptyWith(empty, "query failed")
	}
	return models.OK(models.NewPage(articles, total, page, perPage))
}

// GetSentimentSummary aggregates sentiment for one calendar day when date is
// set, otherwise for the trailing window of days ending today.
func (s *Service) GetSentimentSummary(ctx context.Context, date time.Time, symbol string, days int) (res models.Result[models.SentimentSummary]) {
	var zero models.SentimentSummary
	defer contain(s.logger, "get_sentiment_summary", zero, &res)

	var (
		summary models.SentimentSummary
		err     error
	)
	symbol = utils.CanonicalSymbol(symbol)
	if !date.IsZero() {
		summary, err = s.store.DailySentimentSummary(ctx, date, symbol)
	} else {
		if days < 1 {
			days = DefaultSummaryDays
		}
		from, to := utils.TrailingWindow(s.now(), days)
		summary, err = s.store.SentimentSummary(ctx, from, to, symbol)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("error getting sentiment summary")
		return models.EmptyWith(zero, "query failed")
	}
	return models.OK(summary)
}

// GetTrendingTopics ranks terms over the trailing window of days.
func (s *Service) GetTrendingTopics(ctx context.Context, days int) (res models.Result[[]models.TopicStat]) {
	defer contain(s.logger, "get_trending_topics", []models.TopicStat{}, &res)

	if days < 1 {
		days = DefaultTrendingDays
	}
	from, to := utils.TrailingWindow(s.now(), days)
	topics, err := s.store.TrendingTopics(ctx, from, to, TrendingLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("error getting trending topics")
		return models.EmptyWith([]models.TopicStat{}, "query failed")
	}
	if topics == nil {
		topics = []models.TopicStat{}
	}
	return models.OK(topics)
}

// SearchNews returns one page of articles matching every set filter.
func (s *Service) SearchNews(ctx context.Context, q models.SearchQuery) (res models.Result[models.Page]) {
	q.Page, q.PerPage = models.NormalizePaging(q.Page, q.PerPage)
	empty := models.NewPage(nil, 0, q.Page, q.PerPage)
	defer contain(s.logger, "search_news", empty, &res)

	q.Symbol = utils.CanonicalSymbol(q.Symbol)
	if !q.To.IsZero() {
		// inclusive end date
		q.To = utils.DayStart(q.To).AddDate(0, 0, 1)
	}
	if !q.From.IsZero() {
		q.From = utils.DayStart(q.From)
	}
	articles, total, err := s.store.Search(ctx, q)
	if err != nil {
		s.logger.Error().Err(err).Msg("error searching articles")
		return models.EmptyWith(empty, "query failed")
	}
	return models.OK(models.NewPage(articles, total, q.Page, q.PerPage))
}

// Close releases the store. Errors are logged, not returned.
func (s *Service) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error().Err(err).Msg("error closing news store")
	}
}
