// Package feeds ranks tracked posts into the feed skeleton served over
// XRPC: a time-decayed popularity score, per-URL deduplication, and cursor
// pagination.
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

// scoreTolerance bounds float drift when comparing a cursor score against a
// recomputed ranking.
const scoreTolerance = 1e-4

// overReadFactor is how many candidates are fetched per requested result,
// absorbing attrition from the age/share/repost filters and the per-URL cap.
const overReadFactor = 5

// SkeletonEntry is one feed item; clients hydrate the post separately.
type SkeletonEntry struct {
	Post string `json:"post"`
}

// Skeleton is the getFeedSkeleton response body.
type Skeleton struct {
	Feed   []SkeletonEntry `json:"feed"`
	Cursor string          `json:"cursor,omitempty"`
}

type scoredPost struct {
	uri   string
	url   string
	score float64
}

// Engine computes the ranked feed. It is stateless per call; the config is
// swapped atomically by Reload, so concurrent requests see either the old
// or the new options, never a mix.
type Engine struct {
	source CandidateSource
	path   string

	mu  sync.RWMutex
	cfg Config
}

// NewEngine builds an engine with an explicit config.
func NewEngine(source CandidateSource, cfg Config) *Engine {
	return &Engine{source: source, cfg: cfg}
}

// NewEngineFromFile builds an engine from the options document at path.
// Loading fails soft: a missing or malformed document yields the defaults
// and a logged warning.
func NewEngineFromFile(source CandidateSource, path string) *Engine {
	e := &Engine{source: source, path: path, cfg: DefaultConfig()}
	if path == "" {
		return e
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		slog.Warn("ranking config unavailable, using defaults", "path", path, "error", err)
		return e
	}
	e.cfg = cfg
	return e
}

// Config returns a snapshot of the current options.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Reload re-reads the options document and swaps the config atomically. On
// failure the running config is kept.
func (e *Engine) Reload() error {
	if e.path == "" {
		return nil
	}
	cfg, err := LoadConfig(e.path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	slog.Info("ranking config reloaded", "path", e.path)
	return nil
}

// FeedSkeleton returns one ranked page. An unparseable cursor is treated as
// no cursor; pagination across a live ranking is best-effort consistent.
func (e *Engine) FeedSkeleton(ctx context.Context, limit int, cursor string) (*Skeleton, error) {
	cfg := e.Config()
	if limit <= 0 {
		limit = cfg.ResultsLimit
	}

	ranked, err := e.rank(ctx, cfg, limit*overReadFactor)
	if err != nil {
		return nil, err
	}

	if cursor != "" {
		cur, err := ParseCursor(cursor)
		if err != nil {
			slog.Debug("ignoring invalid feed cursor", "cursor", cursor, "error", err)
		} else {
			ranked = advance(ranked, cur)
		}
	}

	page := ranked
	var next string
	if len(ranked) > limit {
		page = ranked[:limit]
		last := page[len(page)-1]
		next = Cursor{Score: last.score, URI: last.uri}.Encode()
	}

	feed := make([]SkeletonEntry, len(page))
	for i, p := range page {
		feed[i] = SkeletonEntry{Post: p.uri}
	}
	return &Skeleton{Feed: feed, Cursor: next}, nil
}

// rank fetches candidates, filters, scores, sorts, and applies the per-URL
// cap. The result is the full ranking at read time, over-read included.
func (e *Engine) rank(ctx context.Context, cfg Config, fetchLimit int) ([]scoredPost, error) {
	candidates, err := e.source.GetRecentPosts(ctx, cfg.MaxAgeHours, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching ranking candidates: %w", err)
	}

	now := time.Now().UTC()
	scored := make([]scoredPost, 0, len(candidates))
	for _, c := range candidates {
		ageHours := now.Sub(c.URLFirstSeen).Hours()
		if ageHours > float64(cfg.MaxAgeHours) {
			continue
		}
		if c.ShareCount < cfg.MinShareCount || c.RepostCount < cfg.MinRepostCount {
			continue
		}
		scored = append(scored, scoredPost{
			uri:   c.URI,
			url:   c.URL,
			score: score(cfg, c.RepostCount, c.ShareCount, ageHours),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].uri < scored[j].uri
	})

	if cfg.MaxPostsPerURL > 0 {
		perURL := make(map[string]int, len(scored))
		kept := scored[:0]
		for _, p := range scored {
			if perURL[p.url] >= cfg.MaxPostsPerURL {
				continue
			}
			perURL[p.url]++
			kept = append(kept, p)
		}
		scored = kept
	}
	return scored, nil
}

// score is max(1, reposts)^repostWeight × shares × e^(−decay × ageHours).
// The clamp makes zero-repost posts a neutral multiplicand; a negative age
// from clock skew stays finite.
func score(cfg Config, reposts, shares int, ageHours float64) float64 {
	r := math.Max(1, float64(reposts))
	return math.Pow(r, cfg.RepostWeight) * float64(shares) * math.Exp(-cfg.DecayRate*ageHours)
}

// advance drops everything at or before the cursor position. Identity match
// first; when the ranking shifted under the client, fall back to emitting
// items ranked strictly after the cursor's (score, uri) pair.
func advance(ranked []scoredPost, cur Cursor) []scoredPost {
	for i, p := range ranked {
		if p.uri == cur.URI && math.Abs(p.score-cur.Score) < scoreTolerance {
			return ranked[i+1:]
		}
	}
	for i, p := range ranked {
		if p.score < cur.Score-scoreTolerance {
			return ranked[i:]
		}
		if math.Abs(p.score-cur.Score) <= scoreTolerance && p.uri > cur.URI {
			return ranked[i:]
		}
	}
	return nil
}
