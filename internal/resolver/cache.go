package resolver

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/seenimoa/marketlens/internal/datasource"
	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
)

// CachedVerifier memoizes verification answers in a KV store. Errors are
// never cached; negative answers are.
type CachedVerifier struct {
	next datasource.Verifier
	kv   infra.KV
	ttl  time.Duration
}

// NewCachedVerifier wraps next with a cache.
func NewCachedVerifier(next datasource.Verifier, kv infra.KV, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{next: next, kv: kv, ttl: ttl}
}

func cacheKey(symbol string) string {
	return "verify:" + strings.ToUpper(symbol)
}

// Verify returns the cached answer for symbol, asking the wrapped verifier on a miss.
func (c *CachedVerifier) Verify(ctx context.Context, symbol string) (models.Verification, error) {
	key := cacheKey(symbol)
	if data, ok, err := c.kv.Get(ctx, key); err == nil && ok {
		var v models.Verification
		if json.Unmarshal(data, &v) == nil {
			return v, nil
		}
	}

	v, err := c.next.Verify(ctx, symbol)
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.kv.Set(ctx, key, data, c.ttl)
	}
	return v, nil
}
