// Package api provides the HTTP REST API server for MarketLens.
//
// It exposes ticker search, news ingestion and news query endpoints, plus a
// WebSocket stream of completed ingestion batches.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"

	"github.com/seenimoa/marketlens/internal/config"
	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

// TickerResolver answers ticker searches; *resolver.Resolver satisfies it.
type TickerResolver interface {
	Resolve(ctx context.Context, query string) models.Result[[]models.CandidateMatch]
}

// NewsService is the news pipeline; *news.Service satisfies it.
type NewsService interface {
	Run(ctx context.Context, symbols []string, limit int) (models.Result[[]models.AnalyzedArticle], models.BatchReport)
	GetNewsByDateRange(ctx context.Context, start, end time.Time, symbol string, page, perPage int) models.Result[models.Page]
	GetSentimentSummary(ctx context.Context, date time.Time, symbol string, days int) models.Result[models.SentimentSummary]
	GetTrendingTopics(ctx context.Context, days int) models.Result[[]models.TopicStat]
	SearchNews(ctx context.Context, q models.SearchQuery) models.Result[models.Page]
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	resolver TickerResolver
	news     NewsService
	wsHub    *WSHub
	logger   *log.Logger
	version  string
	started  time.Time
}

// NewServer creates a configured API server with all routes and middleware.
// The WebSocket hub starts immediately; Close stops it.
func NewServer(cfg *config.Config, resolver TickerResolver, news NewsService, logger *log.Logger, version string) *Server {
	if version == "" {
		version = "dev"
	}
	srv := &Server{
		cfg:      cfg,
		resolver: resolver,
		news:     news,
		wsHub:    NewWSHub(),
		logger:   infra.OrNop(logger),
		version:  version,
		started:  time.Now().UTC(),
	}
	go srv.wsHub.Run()

	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub. It implements news.Notifier.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// Close stops the WebSocket hub.
func (s *Server) Close() {
	s.wsHub.Close()
}

// ListenAndServe serves HTTP until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	defer s.Close()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Ticker search
		r.Get("/search/tickers", s.handleSearchTickers)

		// News
		r.Post("/news/fetch", s.handleFetchNews)
		r.Get("/news", s.handleNewsByRange)
		r.Get("/news/search", s.handleSearchNews)
		r.Get("/news/sentiment", s.handleSentiment)
		r.Get("/news/trending", s.handleTrending)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope. Reason is set when an
// operation succeeded but produced its default value.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// FetchRequest is the body for POST /api/v1/news/fetch. A nil Limit uses
// the configured default.
type FetchRequest struct {
	Symbols []string `json:"symbols"`
	Limit   *int     `json:"limit,omitempty"`
}

// FetchResponse is the payload of POST /api/v1/news/fetch.
type FetchResponse struct {
	Articles []models.AnalyzedArticle `json:"articles"`
	Report   models.BatchReport       `json:"report"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    s.version,
			"time":       time.Now().UTC().Format(time.RFC3339),
			"uptime_sec": int(time.Since(s.started).Seconds()),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleSearchTickers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data:    []models.CandidateMatch{},
		})
		return
	}

	res := s.resolver.Resolve(r.Context(), q)
	writeResult(w, res.Value, res.Reason)
}

func (s *Server) handleFetchNews(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	limit := s.cfg.News.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	res, report := s.news.Run(r.Context(), req.Symbols, limit)
	writeResult(w, FetchResponse{Articles: res.Value, Report: report}, res.Reason)
}

func (s *Server) handleNewsByRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := utils.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	end, err := utils.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}
	page, perPage, err := parsePaging(q.Get("page"), q.Get("per_page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.news.GetNewsByDateRange(r.Context(), start, end, q.Get("symbol"), page, perPage)
	writeResult(w, res.Value, res.Reason)
}

func (s *Server) handleSearchNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sq := models.SearchQuery{
		Keyword: strings.TrimSpace(q.Get("q")),
		Symbol:  strings.TrimSpace(q.Get("symbol")),
	}

	var err error
	if v := q.Get("start"); v != "" {
		if sq.From, err = utils.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, "start: "+err.Error())
			return
		}
	}
	if v := q.Get("end"); v != "" {
		if sq.To, err = utils.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, "end: "+err.Error())
			return
		}
	}
	if v := q.Get("sentiment"); v != "" {
		label, ok := models.ParseSentimentLabel(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "sentiment must be positive, negative or neutral")
			return
		}
		sq.Sentiment = label
	}
	if sq.Page, sq.PerPage, err = parsePaging(q.Get("page"), q.Get("per_page")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.news.SearchNews(r.Context(), sq)
	writeResult(w, res.Value, res.Reason)
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var date time.Time
	if v := q.Get("date"); v != "" {
		d, err := utils.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date: "+err.Error())
			return
		}
		date = d
	}
	days, err := optionalInt(q.Get("days"), "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.news.GetSentimentSummary(r.Context(), date, q.Get("symbol"), days)
	writeResult(w, res.Value, res.Reason)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	days, err := optionalInt(r.URL.Query().Get("days"), "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.news.GetTrendingTopics(r.Context(), days)
	writeResult(w, res.Value, res.Reason)
}

// ============================================================
// Helpers
// ============================================================

func parsePaging(page, perPage string) (int, int, error) {
	p, err := optionalInt(page, "page")
	if err != nil {
		return 0, 0, err
	}
	pp, err := optionalInt(perPage, "per_page")
	if err != nil {
		return 0, 0, err
	}
	p, pp = models.NormalizePaging(p, pp)
	return p, pp, nil
}

func optionalInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// writeResult writes a successful envelope. A non-empty reason means the
// operation fell back to its default value.
func writeResult(w http.ResponseWriter, data interface{}, reason string) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Reason:  reason,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
