// Package resolver finds the media file an assistant reply is talking about.
//
// Tiers, first success wins:
//  1. an explicit server path such as /api/videos/1712345678901-clip.mp4
//  2. a filename pulled out of the text by an ordered list of phrase patterns
//  3. the newest item of the relevant type, if the text says an operation completed
//  4. nothing
package resolver

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/itchan-dev/mediadesk/frontend/internal/metrics"
	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// CatalogSource performs a full re-fetch. It never fails; an empty catalog means unknown.
type CatalogSource interface {
	Refresh(ctx context.Context) domain.Catalog
}

type Resolver struct {
	source  CatalogSource
	now     func() time.Time
	retries int
	delay   time.Duration
	window  time.Duration
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithRetry sets how many extra attempts ResolveLatest makes and how long it waits between them.
func WithRetry(retries int, delay time.Duration) Option {
	return func(r *Resolver) {
		if retries >= 0 {
			r.retries = retries
		}
		if delay > 0 {
			r.delay = delay
		}
	}
}

// WithRecentWindow sets how fresh an item must be to count as "just created".
func WithRecentWindow(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.window = d
		}
	}
}

func New(source CatalogSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:  source,
		now:     time.Now,
		retries: config.DefaultResolveRetries,
		delay:   config.DefaultResolveRetryDelay,
		window:  config.DefaultRecentWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve evaluates the tiers against a given catalog. It performs no I/O.
func (r *Resolver) Resolve(text string, catalog domain.Catalog, hint string) domain.ResolvedArtifact {
	res, _ := r.evaluate(text, catalog, hint, true)
	metrics.ArtifactResolutions.WithLabelValues(string(res.MatchTier)).Inc()
	return res
}

// ResolveLatest refreshes the catalog before every attempt and retries while the
// artifact is not there yet. While a named file is still missing the time-based
// fallback is held back until the last attempt, so an older file does not win
// over the one being written. The only error returned is ctx's.
func (r *Resolver) ResolveLatest(ctx context.Context, text, hint string) (domain.ResolvedArtifact, error) {
	attempts := r.retries + 1
	none := domain.ResolvedArtifact{MatchTier: domain.TierNone}

	for attempt := 1; attempt <= attempts; attempt++ {
		catalog := r.source.Refresh(ctx)
		res, err := r.evaluate(text, catalog, hint, attempt == attempts)
		if err == nil {
			metrics.ArtifactResolutions.WithLabelValues(string(res.MatchTier)).Inc()
			metrics.ResolveAttempts.Observe(float64(attempt))
			if res.MatchedItem != nil {
				logger.Log.Debug("artifact resolved", "component", "resolver",
					"tier", res.MatchTier, "path", res.MatchedItem.Path, "attempt", attempt)
			}
			return res, nil
		}

		if attempt == attempts {
			break
		}
		logger.Log.Debug("artifact not in catalog yet", "component", "resolver", "attempt", attempt, "error", err)

		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return none, ctx.Err()
		case <-timer.C:
		}
	}

	logger.Log.Info("giving up on artifact resolution", "component", "resolver", "attempts", attempts)
	metrics.ArtifactResolutions.WithLabelValues(string(domain.TierNone)).Inc()
	metrics.ResolveAttempts.Observe(float64(attempts))
	return none, nil
}

// evaluate returns ErrNotFoundYet when the text is actionable but nothing in the
// catalog matches yet. Non-actionable text resolves to TierNone with no error.
func (r *Resolver) evaluate(text string, catalog domain.Catalog, hint string, allowFallback bool) (domain.ResolvedArtifact, error) {
	pending := false

	// tier 1
	for _, src := range []string{text, hint} {
		p, ok := findServerPath(src)
		if !ok {
			continue
		}
		if item, ok := lookupPath(catalog, p); ok {
			return matched(item, domain.TierExplicitPath), nil
		}
		pending = true
	}

	// tier 2
	var candidates []string
	if c, ok := extractCandidate(text); ok {
		candidates = append(candidates, c)
	}
	if h := basename(trimToken(strings.TrimSpace(hint))); h != "" && !strings.Contains(hint, "/api/") {
		candidates = append(candidates, h)
	}
	bucket := domain.Videos
	if len(candidates) > 0 {
		bucket = relevantType(candidates[0])
	}
	for _, c := range candidates {
		items := catalog.Bucket(relevantType(c))
		if item, ok := matchName(items, c); ok {
			return matched(item, domain.TierFilenamePattern), nil
		}
		pending = true
	}

	// tier 3
	keyword := hasCompletionKeyword(text)
	if !pending && !keyword {
		return domain.ResolvedArtifact{MatchTier: domain.TierNone}, nil
	}
	if keyword && (allowFallback || !pending) {
		if item, ok := r.mostRecent(catalog.Bucket(bucket)); ok {
			return matched(item, domain.TierMostRecentFallback), nil
		}
	}
	return domain.ResolvedArtifact{MatchTier: domain.TierNone}, internal_errors.ErrNotFoundYet
}

func matched(item domain.MediaItem, tier domain.MatchTier) domain.ResolvedArtifact {
	return domain.ResolvedArtifact{MatchedItem: &item, MatchTier: tier}
}

func lookupPath(catalog domain.Catalog, p string) (domain.MediaItem, bool) {
	if item, ok := catalog.FindByPath(p); ok {
		return item, true
	}
	if unescaped, err := url.PathUnescape(p); err == nil && unescaped != p {
		return catalog.FindByPath(unescaped)
	}
	return domain.MediaItem{}, false
}

// matchName prefers exact matches over substring ones; among substring matches the newest wins.
func matchName(items []domain.MediaItem, candidate string) (domain.MediaItem, bool) {
	exact := []func(domain.MediaItem) bool{
		func(it domain.MediaItem) bool { return it.Name == candidate },
		func(it domain.MediaItem) bool { return basename(it.Path) == candidate },
		func(it domain.MediaItem) bool { return stripTimestamp(it.Name) == stripTimestamp(candidate) },
		func(it domain.MediaItem) bool { return strings.EqualFold(it.Name, candidate) },
	}
	for _, eq := range exact {
		for _, it := range items {
			if eq(it) {
				return it, true
			}
		}
	}

	for _, it := range domain.NewestFirst(items) {
		if strings.Contains(it.Name, candidate) || strings.Contains(basename(it.Path), candidate) {
			return it, true
		}
	}
	return domain.MediaItem{}, false
}

// mostRecent walks newest-first and takes the first item that looks like an edit
// output or is inside the recent window; otherwise the newest item.
func (r *Resolver) mostRecent(items []domain.MediaItem) (domain.MediaItem, bool) {
	if len(items) == 0 {
		return domain.MediaItem{}, false
	}
	sorted := domain.NewestFirst(items)
	cutoff := r.now().Add(-r.window).UnixMilli()
	for _, it := range sorted {
		if it.LastModified >= cutoff || hasOperationMarker(it.Name) {
			return it, true
		}
	}
	return sorted[0], true
}
