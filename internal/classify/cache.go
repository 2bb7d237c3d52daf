package classify

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey uses the exact text sent to the classifier, since the model may be
// case or whitespace sensitive.
type cacheKey struct {
	text string
	topK int
}

// Cached memoizes successful predictions in an LRU. Errors are not cached.
type Cached struct {
	inner Classifier
	cache *lru.Cache[cacheKey, []Prediction]
}

// NewCached wraps inner with an LRU of the given size. A size of zero or less
// disables caching and returns inner unchanged.
func NewCached(inner Classifier, size int) (Classifier, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := lru.New[cacheKey, []Prediction](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Predict returns a cached copy when available, otherwise asks inner.
func (c *Cached) Predict(ctx context.Context, text string, topK int) ([]Prediction, error) {
	key := cacheKey{text: text, topK: topK}
	if hit, ok := c.cache.Get(key); ok {
		return clonePredictions(hit), nil
	}

	preds, err := c.inner.Predict(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clonePredictions(preds))
	return preds, nil
}

// Len reports the number of cached entries.
func (c *Cached) Len() int { return c.cache.Len() }

func clonePredictions(p []Prediction) []Prediction {
	if p == nil {
		return nil
	}
	out := make([]Prediction, len(p))
	copy(out, p)
	return out
}
