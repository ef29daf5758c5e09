package cache

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/logtriage/internal/llm"
	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// Classifier is the call the cache decorates.
type Classifier interface {
	Classify(ctx context.Context, content string) (llm.Outcome, error)
}

// Cached answers from the cache when it can and records settled verdicts
// returned by the wrapped classifier. Error outcomes are never stored.
type Cached struct {
	next   Classifier
	cache  *Cache
	model  string
	digest string
	log    *slog.Logger
}

// Wrap decorates next. model and templateDigest scope the keys so that a
// configuration change misses the cache.
func Wrap(next Classifier, c *Cache, model, templateDigest string, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{next: next, cache: c, model: model, digest: templateDigest, log: log.With("component", "cache")}
}

// Classify implements the dispatcher's classifier contract.
func (c *Cached) Classify(ctx context.Context, content string) (llm.Outcome, error) {
	key := Key(c.model, c.digest, content)
	e, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache lookup", "error", err)
	}
	if ok {
		return llm.Outcome{Status: e.Status, Detail: e.Detail, Response: e.Response, Cached: true}, nil
	}

	out, err := c.next.Classify(ctx, content)
	if err != nil || types.IsError(out.Status) {
		return out, err
	}
	if perr := c.cache.Put(ctx, key, Entry{Status: out.Status, Detail: out.Detail, Response: out.Response}); perr != nil {
		c.log.Warn("cache store", "error", perr)
	}
	return out, nil
}
