package hypothesis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/metrics"
)

// CachedGenerator memoizes hypotheses per research context
type CachedGenerator struct {
	next    Generator
	cache   *cache.Cache
	ttl     time.Duration
	logger  *logrus.Logger
	metrics *metrics.Registry
}

// NewCachedGenerator wraps next with a TTL cache
func NewCachedGenerator(next Generator, ttl time.Duration, logger *logrus.Logger, reg *metrics.Registry) *CachedGenerator {
	return &CachedGenerator{
		next:    next,
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		logger:  logger,
		metrics: reg,
	}
}

// Generate returns cached hypotheses when the same context was seen recently
func (c *CachedGenerator) Generate(ctx context.Context, rc ResearchContext) ([]Hypothesis, error) {
	key := contextKey(rc)

	if cached, found := c.cache.Get(key); found {
		if hs, ok := cached.([]Hypothesis); ok {
			c.metrics.RecordHypothesisCache(true)
			c.logger.WithField("cache_key", key[:12]).Debug("Cache hit for hypotheses")
			return cloneHypotheses(hs), nil
		}
	}

	c.metrics.RecordHypothesisCache(false)
	hs, err := c.next.Generate(ctx, rc)
	if err != nil {
		return nil, err
	}
	if len(hs) > 0 {
		c.cache.Set(key, cloneHypotheses(hs), c.ttl)
	}
	return hs, nil
}

// Clear flushes the cache
func (c *CachedGenerator) Clear() {
	c.cache.Flush()
}

// ItemCount returns the number of cached contexts
func (c *CachedGenerator) ItemCount() int {
	return c.cache.ItemCount()
}

func contextKey(rc ResearchContext) string {
	// json.Marshal output is stable for this struct.
	data, _ := json.Marshal(rc)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func cloneHypotheses(in []Hypothesis) []Hypothesis {
	out := make([]Hypothesis, len(in))
	for i, h := range in {
		out[i] = h
		if h.Parameters != nil {
			params := make(map[string]interface{}, len(h.Parameters))
			for k, v := range h.Parameters {
				params[k] = v
			}
			out[i].Parameters = params
		}
	}
	return out
}
