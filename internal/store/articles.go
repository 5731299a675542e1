package store

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/marketlens/internal/news"
	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

const articleColumns = `a.id, a.title, a.content, a.url, a.source, a.published_at, a.sentiment_label, a.sentiment_score`

// fingerprint identifies an article for de-duplication: its URL when known,
// otherwise its title and publication second.
func fingerprint(a *models.AnalyzedArticle) string {
	key := strings.ToLower(strings.TrimSpace(a.URL))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(a.Title)) + "|" + strconv.FormatInt(a.PublishedAt.Unix(), 10)
	}
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Save persists one article and its symbols in a single transaction and
// returns the assigned id. An article already stored yields news.ErrDuplicate.
func (s *Store) Save(ctx context.Context, a *models.AnalyzedArticle) (id int64, err error) {
	if a == nil {
		return 0, fmt.Errorf("save article: nil article")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save article: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, s.q(`
		INSERT INTO news_articles
			(fingerprint, title, content, url, source, published_at, sentiment_label, sentiment_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id`),
		fingerprint(a), a.Title, a.Content, a.URL, a.Source,
		a.PublishedAt.UTC().Unix(), string(a.SentimentLabel), a.SentimentScore, s.now().UTC().Unix(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, news.ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}

	for i, sym := range a.Symbols {
		if sym = utils.CanonicalSymbol(sym); sym == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO news_article_symbols (article_id, symbol, position)
			VALUES (?, ?, ?)
			ON CONFLICT (article_id, symbol) DO NOTHING`),
			id, sym, i,
		); err != nil {
			return 0, fmt.Errorf("insert article symbol: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit article: %w", err)
	}
	return id, nil
}

// filter accumulates WHERE conditions and their arguments.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) add(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

func (f *filter) window(from, to time.Time) {
	if !from.IsZero() {
		f.add("a.published_at >= ?", from.UTC().Unix())
	}
	if !to.IsZero() {
		f.add("a.published_at < ?", to.UTC().Unix())
	}
}

func (f *filter) symbol(symbol string) {
	if symbol = utils.CanonicalSymbol(symbol); symbol != "" {
		f.add("EXISTS (SELECT 1 FROM news_article_symbols s WHERE s.article_id = a.id AND s.symbol = ?)", symbol)
	}
}

// escapeLike escapes LIKE wildcards using backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// QueryByRange returns one page of articles published in [q.From, q.To),
// newest first, plus the unpaginated total.
func (s *Store) QueryByRange(ctx context.Context, q models.RangeQuery) ([]models.AnalyzedArticle, int, error) {
	var f filter
	f.window(q.From, q.To)
	f.symbol(q.Symbol)
	return s.page(ctx, &f, q.Page, q.PerPage)
}

// Search returns one page of articles matching every non-empty filter.
// The keyword matches title or content, case-insensitively.
func (s *Store) Search(ctx context.Context, q models.SearchQuery) ([]models.AnalyzedArticle, int, error) {
	var f filter
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
		f.add(`(LOWER(a.title) LIKE ? ESCAPE '\' OR LOWER(a.content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	f.symbol(q.Symbol)
	f.window(q.From, q.To)
	if q.Sentiment != "" {
		f.add("a.sentiment_label = ?", string(q.Sentiment))
	}
	return s.page(ctx, &f, q.Page, q.PerPage)
}

func (s *Store) page(ctx context.Context, f *filter, page, perPage int) ([]models.AnalyzedArticle, int, error) {
	page, perPage = models.NormalizePaging(page, perPage)

	var total int
	if err := s.db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM news_articles a"+f.where()), f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}
	if total == 0 {
		return []models.AnalyzedArticle{}, 0, nil
	}

	query := "SELECT " + articleColumns + " FROM news_articles a" + f.where() +
		" ORDER BY a.published_at DESC, a.id DESC LIMIT ? OFFSET ?"
	args := append(append([]any(nil), f.args...), perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query articles: %w", err)
	}
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachSymbols(ctx, articles); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func scanArticles(rows *sql.Rows) ([]models.AnalyzedArticle, error) {
	defer rows.Close()

	articles := []models.AnalyzedArticle{}
	for rows.Next() {
		var (
			a         models.AnalyzedArticle
			published int64
			label     string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.URL, &a.Source, &published, &label, &a.SentimentScore); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.PublishedAt = time.Unix(published, 0).UTC()
		a.SentimentLabel = models.SentimentLabel(label)
		a.Symbols = []string{}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// attachSymbols loads the symbols of every article in one query.
func (s *Store) attachSymbols(ctx context.Context, articles []models.AnalyzedArticle) error {
	if len(articles) == 0 {
		return nil
	}
	index := make(map[int64]int, len(articles))
	placeholders := make([]string, len(articles))
	args := make([]any, len(articles))
	for i, a := range articles {
		index[a.ID] = i
		placeholders[i] = "?"
		args[i] = a.ID
	}

	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT article_id, symbol FROM news_article_symbols WHERE article_id IN ("+
			strings.Join(placeholders, ", ")+") ORDER BY article_id, position"), args...)
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			symbol string
		)
		if err := rows.Scan(&id, &symbol); err != nil {
			return fmt.Errorf("scan symbol: %w", err)
		}
		if i, ok := index[id]; ok {
			articles[i].Symbols = append(articles[i].Symbols, symbol)
		}
	}
	return rows.Err()
}
