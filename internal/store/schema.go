package store

import (
	"strconv"
	"strings"
)

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name       string
	driver     string
	schema     []string
	numbered   bool // $1, $2 placeholders instead of ?
	setupConns []string
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS news_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fingerprint TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			published_at INTEGER NOT NULL,
			sentiment_label TEXT NOT NULL,
			sentiment_score REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_published ON news_articles(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_sentiment ON news_articles(sentiment_label)`,
		`CREATE TABLE IF NOT EXISTS news_article_symbols (
			article_id INTEGER NOT NULL REFERENCES news_articles(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (article_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_article_symbols_symbol ON news_article_symbols(symbol)`,
	},
	setupConns: []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	},
}

var postgresDialect = dialect{
	name:     "postgres",
	driver:   "pgx",
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS news_articles (
			id BIGSERIAL PRIMARY KEY,
			fingerprint TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			published_at BIGINT NOT NULL,
			sentiment_label TEXT NOT NULL,
			sentiment_score DOUBLE PRECISION NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_published ON news_articles(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_sentiment ON news_articles(sentiment_label)`,
		`CREATE TABLE IF NOT EXISTS news_article_symbols (
			article_id BIGINT NOT NULL REFERENCES news_articles(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (article_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_article_symbols_symbol ON news_article_symbols(symbol)`,
	},
}

// rebind rewrites ? placeholders for engines using numbered parameters.
// Queries in this package never contain a literal '?'.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
