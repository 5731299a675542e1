// Package resolver turns a free-form ticker query into a short, ranked list
// of candidate symbols drawn from the local catalog and a live verifier.
package resolver

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/marketlens/internal/catalog"
	"github.com/seenimoa/marketlens/internal/datasource"
	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

// MaxResults caps the number of candidates returned by Resolve.
const MaxResults = 5

// Resolver resolves ticker queries. It is safe for concurrent use.
type Resolver struct {
	catalog  *catalog.Catalog
	verifier datasource.Verifier
	timeout  time.Duration
	logger   *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithVerifyTimeout bounds each live verification call.
func WithVerifyTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver. Either argument may be nil: a nil catalog has no
// entries and a nil verifier skips live verification.
func New(cat *catalog.Catalog, verifier datasource.Verifier, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:  cat,
		verifier: verifier,
		timeout:  10 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = infra.OrNop(r.logger)
	return r
}

// matchSet accumulates candidates in insertion order, first match wins.
type matchSet struct {
	items []models.CandidateMatch
	seen  map[string]bool
}

func (m *matchSet) has(symbol string) bool {
	return m.seen[strings.ToUpper(symbol)]
}

func (m *matchSet) add(c models.CandidateMatch) bool {
	key := strings.ToUpper(c.Symbol)
	if m.seen[key] {
		return false
	}
	m.seen[key] = true
	m.items = append(m.items, c)
	return true
}

// Resolve returns at most MaxResults candidates for query. It never returns
// an error: failures yield an empty result with a reason.
func (r *Resolver) Resolve(ctx context.Context, query string) (res models.Result[[]models.CandidateMatch]) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("query", query).Str("panic", fmt.Sprint(p)).Str("stack", string(debug.Stack())).Msg("ticker resolve failed")
			res = models.Empty[[]models.CandidateMatch]("internal error")
		}
	}()

	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return models.Empty[[]models.CandidateMatch]("empty query")
	}

	variants := utils.NormalizeTicker(q)
	isVariant := make(map[string]bool, len(variants))
	for _, v := range variants {
		isVariant[v] = true
	}

	set := &matchSet{seen: make(map[string]bool)}
	entries := r.catalog.Entries()

	// 1. exact and alias matches in the local catalog
	for _, e := range entries {
		sym := strings.ToUpper(e.Symbol)
		if sym == q || isVariant[sym] {
			set.add(models.CandidateMatch{
				Symbol:      e.Symbol,
				DisplayName: e.Name,
				Source:      models.SourceLocal,
				AssetType:   utils.DetermineAssetType(e.Symbol, e.Name, ""),
			})
		}
	}

	// 2. live verification of the remaining variants
	if r.verifier != nil {
		for _, v := range variants {
			if set.has(v) {
				continue
			}
			if c, ok := r.verify(ctx, v); ok {
				set.add(c)
			}
		}
	}

	// 3. partial matches
	if len(set.items) < MaxResults {
	partial:
		for _, v := range variants {
			for _, e := range entries {
				sym, name := strings.ToUpper(e.Symbol), strings.ToUpper(e.Name)
				if sym == name || set.has(e.Symbol) {
					continue
				}
				if !strings.Contains(sym, v) && !strings.Contains(name, v) {
					continue
				}
				set.add(models.CandidateMatch{
					Symbol:      e.Symbol,
					DisplayName: e.Name,
					Source:      models.SourceLocal,
					AssetType:   utils.DetermineAssetType(e.Symbol, e.Name, ""),
				})
				if len(set.items) >= MaxResults {
					break partial
				}
			}
		}
	}

	out := set.items
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	if len(out) == 0 {
		return models.EmptyWith([]models.CandidateMatch{}, "no matches")
	}
	r.logger.Debug().Str("query", q).Int("matches", len(out)).Msg("ticker resolved")
	return models.OK(out)
}

// verify asks the live verifier about one variant. Errors are logged and
// reported as "not found".
func (r *Resolver) verify(ctx context.Context, symbol string) (models.CandidateMatch, bool) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	v, err := r.verifier.Verify(ctx, symbol)
	if err != nil {
		r.logger.Warn().Err(err).Str("symbol", symbol).Msg("ticker verification failed")
		return models.CandidateMatch{}, false
	}
	if !v.Found {
		return models.CandidateMatch{}, false
	}

	name := v.Name
	if local, ok := r.catalog.Name(symbol); ok && local != "" {
		name = local
	}
	if name == "" {
		name = symbol
	}
	r.logger.Info().Str("symbol", symbol).Msg("verified asset")
	return models.CandidateMatch{
		Symbol:      symbol,
		DisplayName: name,
		Source:      models.SourceVerified,
		AssetType:   utils.DetermineAssetType(symbol, name, v.QuoteType),
	}, true
}
