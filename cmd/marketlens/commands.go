package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/marketlens/api"
	"github.com/seenimoa/marketlens/internal/news"
	"github.com/seenimoa/marketlens/internal/scheduler"
	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sentimentCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(initdbCmd)
	rootCmd.AddCommand(serveCmd)

	for _, c := range []*cobra.Command{resolveCmd, fetchCmd, newsCmd, searchCmd, sentimentCmd, trendingCmd} {
		c.Flags().Bool("json", false, "print JSON instead of a table")
	}
	fetchCmd.Flags().Int("limit", 0, "maximum articles to fetch (default: news.default_limit)")
	for _, c := range []*cobra.Command{newsCmd, searchCmd} {
		c.Flags().String("symbol", "", "only articles tagged with this symbol")
		c.Flags().Int("page", 1, "page number (1-indexed)")
		c.Flags().Int("per-page", models.DefaultPerPage, "articles per page")
	}
	newsCmd.Flags().String("start", "", "first day, YYYY-MM-DD (default: today)")
	newsCmd.Flags().String("end", "", "last day, YYYY-MM-DD (default: start)")
	searchCmd.Flags().String("start", "", "first day, YYYY-MM-DD")
	searchCmd.Flags().String("end", "", "last day, YYYY-MM-DD")
	searchCmd.Flags().String("sentiment", "", "positive, negative or neutral")
	sentimentCmd.Flags().String("date", "", "single day, YYYY-MM-DD (default: trailing window)")
	sentimentCmd.Flags().String("symbol", "", "only articles tagged with this symbol")
	sentimentCmd.Flags().Int("days", news.DefaultSummaryDays, "trailing window in days")
	trendingCmd.Flags().Int("days", news.DefaultTrendingDays, "trailing window in days")
	serveCmd.Flags().Int("port", 0, "port override")
}

// --- Resolve Command ---

var resolveCmd = &cobra.Command{
	Use:   "resolve [query]",
	Short: "Search ticker symbols",
	Long: `Resolve a ticker query against the local catalog and Yahoo Finance.

Examples:
  marketlens resolve hsi
  marketlens resolve btc
  marketlens resolve apple`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg, logger)
		defer a.Close()

		r, err := a.resolver(cmd.Context())
		if err != nil {
			return err
		}
		res := r.Resolve(cmd.Context(), args[0])
		if asJSON(cmd) {
			return printJSON(os.Stdout, res.Value)
		}
		if res.Failed() {
			fmt.Printf("No tickers found for %q (%s)\n", args[0], res.Reason)
			return nil
		}
		w := table(os.Stdout, "SYMBOL", "NAME", "TYPE", "SOURCE")
		for _, m := range res.Value {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Symbol, m.DisplayName, orDash(string(m.AssetType)), m.Source)
		}
		return w.Flush()
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Fetch, analyze and store news for symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg, logger)
		defer a.Close()

		svc, err := a.newsService(cmd.Context())
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = cfg.News.DefaultLimit
		}

		res, report := svc.Run(cmd.Context(), splitSymbols(args), limit)
		if asJSON(cmd) {
			return printJSON(os.Stdout, api.FetchResponse{Articles: res.Value, Report: report})
		}
		fmt.Printf("Run %s: %d of %d articles stored (%.1f%%)\n", report.RunID, report.Persisted, report.Fetched, report.Rate)
		if res.Failed() {
			fmt.Printf("  %s\n", res.Reason)
		}
		return printArticles(os.Stdout, res.Value)
	},
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "List stored news for a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := dateFlag(cmd, "start")
		if err != nil {
			return err
		}
		if start.IsZero() {
			start = utils.DayStart(time.Now())
		}
		end, err := dateFlag(cmd, "end")
		if err != nil {
			return err
		}
		if end.IsZero() {
			end = start
		}
		symbol, _ := cmd.Flags().GetString("symbol")
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		a := newApp(cfg, logger)
		defer a.Close()
		svc, err := a.newsService(cmd.Context())
		if err != nil {
			return err
		}
		res := svc.GetNewsByDateRange(cmd.Context(), start, end, symbol, page, perPage)
		return printPage(cmd, res)
	},
}

// --- Search Command ---

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search stored news",
	Long: `Search stored news. Every filter is optional and filters combine with AND.

Examples:
  marketlens search earnings
  marketlens search --symbol AAPL --sentiment negative
  marketlens search guidance --start 2026-03-01 --end 2026-03-31`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var q models.SearchQuery
		if len(args) == 1 {
			q.Keyword = args[0]
		}
		var err error
		if q.From, err = dateFlag(cmd, "start"); err != nil {
			return err
		}
		if q.To, err = dateFlag(cmd, "end"); err != nil {
			return err
		}
		if s, _ := cmd.Flags().GetString("sentiment"); s != "" {
			label, ok := models.ParseSentimentLabel(s)
			if !ok {
				return fmt.Errorf("invalid sentiment %q: want positive, negative or neutral", s)
			}
			q.Sentiment = label
		}
		q.Symbol, _ = cmd.Flags().GetString("symbol")
		q.Page, _ = cmd.Flags().GetInt("page")
		q.PerPage, _ = cmd.Flags().GetInt("per-page")

		a := newApp(cfg, logger)
		defer a.Close()
		svc, err := a.newsService(cmd.Context())
		if err != nil {
			return err
		}
		return printPage(cmd, svc.SearchNews(cmd.Context(), q))
	},
}

// --- Sentiment Command ---

var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Summarize stored sentiment for a day or a trailing window",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := dateFlag(cmd, "date")
		if err != nil {
			return err
		}
		symbol, _ := cmd.Flags().GetString("symbol")
		days, _ := cmd.Flags().GetInt("days")

		a := newApp(cfg, logger)
		defer a.Close()
		svc, err := a.newsService(cmd.Context())
		if err != nil {
			return err
		}
		res := svc.GetSentimentSummary(cmd.Context(), date, symbol, days)
		if asJSON(cmd) {
			return printJSON(os.Stdout, res.Value)
		}
		s := res.Value
		fmt.Printf("Articles:  %d\n", s.TotalArticles)
		fmt.Printf("Positive:  %d\n", s.Distribution.Positive)
		fmt.Printf("Negative:  %d\n", s.Distribution.Negative)
		fmt.Printf("Neutral:   %d\n", s.Distribution.Neutral)
		fmt.Printf("Average:   %+.3f\n", s.AverageSentiment)
		return nil
	},
}

// --- Trending Command ---

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show trending topics over a trailing window",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a := newApp(cfg, logger)
		defer a.Close()
		svc, err := a.newsService(cmd.Context())
		if err != nil {
			return err
		}
		res := svc.GetTrendingTopics(cmd.Context(), days)
		if asJSON(cmd) {
			return printJSON(os.Stdout, res.Value)
		}
		w := table(os.Stdout, "TOPIC", "MENTIONS", "AVG SENTIMENT", "POS/NEG/NEU")
		for _, t := range res.Value {
			d := t.Distribution
			fmt.Fprintf(w, "%s\t%d\t%+.3f\t%d/%d/%d\n", t.Topic, t.Mentions, t.AverageSentiment, d.Positive, d.Negative, d.Neutral)
		}
		return w.Flush()
	},
}

// --- InitDB Command ---

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the news tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg, logger)
		defer a.Close()
		st, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Tables ready (%s)\n", st.Driver())
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server (and the ingestion scheduler when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(cfg, logger)
		defer a.Close()

		r, err := a.resolver(ctx)
		if err != nil {
			return err
		}
		svc, err := a.newsService(ctx)
		if err != nil {
			return err
		}

		srv := api.NewServer(cfg, r, svc, logger, version)
		svc.SetNotifier(srv.Hub())

		if cfg.Scheduler.Enabled {
			sched := scheduler.New(svc, cfg.Scheduler.Watchlist, cfg.Scheduler.Limit, cfg.News.Timeout()*2, logger)
			if err := sched.Schedule(cfg.Scheduler.Cron); err != nil {
				return err
			}
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				sched.Stop(stopCtx)
			}()
		}

		port := cfg.API.Port
		if p, _ := cmd.Flags().GetInt("port"); p > 0 {
			port = p
		}
		return srv.ListenAndServe(ctx, fmt.Sprintf("%s:%d", cfg.API.Host, port))
	},
}

// ============================================================
// Output helpers
// ============================================================

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func printArticles(w io.Writer, articles []models.AnalyzedArticle) error {
	tw := table(w, "ID", "PUBLISHED", "SENTIMENT", "SYMBOLS", "TITLE")
	for _, a := range articles {
		fmt.Fprintf(tw, "%d\t%s\t%s %+.2f\t%s\t%s\n",
			a.ID, a.PublishedAt.Format("2006-01-02 15:04"), a.SentimentLabel, a.SentimentScore,
			orDash(strings.Join(a.Symbols, ",")), truncateTitle(a.Title, 80))
	}
	return tw.Flush()
}

func printPage(cmd *cobra.Command, res models.Result[models.Page]) error {
	if asJSON(cmd) {
		return printJSON(os.Stdout, res.Value)
	}
	p := res.Value
	if err := printArticles(os.Stdout, p.Articles); err != nil {
		return err
	}
	fmt.Printf("\nPage %d of %d (%d articles)\n", p.Page, p.TotalPages, p.Total)
	return nil
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := utils.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

// splitSymbols accepts both "AAPL MSFT" and "AAPL,MSFT".
func splitSymbols(args []string) []string {
	var out []string
	for _, a := range args {
		for _, s := range strings.Split(a, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateTitle(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
