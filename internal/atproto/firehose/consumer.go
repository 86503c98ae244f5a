// Package firehose consumes the com.atproto.sync.subscribeRepos stream,
// extracts posts that reference allow-listed hosts, and feeds them into the
// batch writer. Reposts of tracked posts bump their counter directly.
package firehose

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	bsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/repo"
	"github.com/bluesky-social/indigo/repomgr"
	"github.com/ipfs/go-cid"
	typegen "github.com/whyrusleeping/cbor-gen"

	"github.com/reuning/trending-news-feed/internal/core/domains"
	"github.com/reuning/trending-news-feed/internal/core/posts"
	"github.com/reuning/trending-news-feed/internal/core/urls"
)

const (
	postCollection   = "app.bsky.feed.post"
	repostCollection = "app.bsky.feed.repost"
)

// Consumer turns commit messages into writer enqueues and repost
// increments. Record-level failures are counted and logged at debug; they
// never propagate, so one bad record cannot take the stream down.
type Consumer struct {
	repo       posts.Repository
	writer     *posts.BatchWriter
	filter     *domains.Filter
	normalizer urls.Normalizer

	lastSeq atomic.Int64

	postsProcessed   atomic.Int64
	postsWithLinks   atomic.Int64
	postsAccepted    atomic.Int64
	repostsProcessed atomic.Int64
	repostsApplied   atomic.Int64
	errorCount       atomic.Int64
}

// Stats is a point-in-time snapshot of the consumer counters, exposed on
// /stats and folded into the periodic throughput summary.
type Stats struct {
	PostsProcessed   int64 `json:"posts_processed"`
	PostsWithLinks   int64 `json:"posts_with_links"`
	PostsAccepted    int64 `json:"posts_accepted"`
	RepostsProcessed int64 `json:"reposts_processed"`
	RepostsApplied   int64 `json:"reposts_applied"`
	Errors           int64 `json:"errors"`
	LastSeq          int64 `json:"last_seq"`
}

// NewConsumer wires a consumer to its collaborators. Posts flow through
// the writer; reposts hit the repository directly.
func NewConsumer(repository posts.Repository, writer *posts.BatchWriter, filter *domains.Filter) *Consumer {
	return &Consumer{repo: repository, writer: writer, filter: filter}
}

// HandleCommit processes one firehose commit. It always returns nil: the
// stream must survive malformed payloads, so every record-level error ends
// at the error counter.
func (c *Consumer) HandleCommit(ctx context.Context, evt *comatproto.SyncSubscribeRepos_Commit) error {
	c.lastSeq.Store(evt.Seq)

	if evt.TooBig {
		// Commits over the relay's block limit omit their block data.
		return nil
	}

	// The CAR block is only decoded once a relevant op shows up.
	var rr *repo.Repo
	for _, op := range evt.Ops {
		if repomgr.EventKind(op.Action) != repomgr.EvtKindCreateRecord {
			continue
		}
		collection, _, found := strings.Cut(op.Path, "/")
		if !found || (collection != postCollection && collection != repostCollection) {
			continue
		}
		if op.Cid == nil || !cid.Cid(*op.Cid).Defined() {
			continue
		}

		if rr == nil {
			var err error
			rr, err = repo.ReadRepoFromCar(ctx, bytes.NewReader(evt.Blocks))
			if err != nil {
				c.errorCount.Add(1)
				slog.Debug("skipping commit with unreadable blocks", "repo", evt.Repo, "seq", evt.Seq, "error", err)
				return nil
			}
		}

		rc, rec, err := rr.GetRecord(ctx, op.Path)
		if err != nil {
			c.errorCount.Add(1)
			slog.Debug("skipping unreadable record", "repo", evt.Repo, "path", op.Path, "error", err)
			continue
		}
		if lexutil.LexLink(rc) != *op.Cid {
			c.errorCount.Add(1)
			slog.Debug("skipping record with mismatched cid", "repo", evt.Repo, "path", op.Path)
			continue
		}

		c.handleRecord(ctx, evt.Repo, op.Path, rc.String(), rec)
	}
	return nil
}

// handleRecord dispatches one created record by its decoded type.
func (c *Consumer) handleRecord(ctx context.Context, repoDID, path, recCID string, rec typegen.CBORMarshaler) {
	switch record := rec.(type) {
	case *bsky.FeedPost:
		c.handlePost(ctx, repoDID, path, recCID, record)
	case *bsky.FeedRepost:
		c.handleRepost(ctx, record)
	}
}

// handlePost runs the accept pipeline: pre-filter, URL extraction,
// normalization, domain filter, then the writer.
func (c *Consumer) handlePost(ctx context.Context, repoDID, path, recCID string, post *bsky.FeedPost) {
	c.postsProcessed.Add(1)

	if !hasLinkIndication(post) {
		return
	}
	c.postsWithLinks.Add(1)

	raw := extractExternalURL(post)
	if raw == "" {
		return
	}
	normalized, host, err := c.normalizer.Normalize(raw)
	if err != nil {
		slog.Debug("dropping unparseable link", "url", raw, "error", err)
		return
	}
	if !c.filter.Allows(host) {
		return
	}

	createdAt, err := time.Parse(time.RFC3339, post.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	c.writer.Add(ctx, posts.PostFields{
		URI:       fmt.Sprintf("at://%s/%s", repoDID, path),
		CID:       recCID,
		AuthorDID: repoDID,
		Text:      post.Text,
		CreatedAt: createdAt,
		URL:       normalized,
		Host:      host,
	})
	c.postsAccepted.Add(1)
}

// handleRepost applies a best-effort counter bump for reposts of tracked
// posts. Reposts are rare enough to skip the batching path.
func (c *Consumer) handleRepost(ctx context.Context, repost *bsky.FeedRepost) {
	c.repostsProcessed.Add(1)

	if repost.Subject == nil || repost.Subject.Uri == "" {
		return
	}
	applied, err := c.repo.IncrementRepostCount(ctx, repost.Subject.Uri)
	if err != nil {
		c.errorCount.Add(1)
		slog.Debug("repost increment failed", "subject", repost.Subject.Uri, "error", err)
		return
	}
	if applied {
		c.repostsApplied.Add(1)
	}
}

// Snapshot reads the counters. Values are eventually consistent with each
// other; readers only need the trend.
func (c *Consumer) Snapshot() Stats {
	return Stats{
		PostsProcessed:   c.postsProcessed.Load(),
		PostsWithLinks:   c.postsWithLinks.Load(),
		PostsAccepted:    c.postsAccepted.Load(),
		RepostsProcessed: c.repostsProcessed.Load(),
		RepostsApplied:   c.repostsApplied.Load(),
		Errors:           c.errorCount.Load(),
		LastSeq:          c.lastSeq.Load(),
	}
}

// LastSeq returns the highest firehose sequence seen, used to resume the
// subscription after an in-process reconnect.
func (c *Consumer) LastSeq() int64 {
	return c.lastSeq.Load()
}

// LogThroughput emits an operational summary every interval until ctx is
// canceled: per-minute rates over the elapsed window, acceptance rate, and
// the writer's queue state.
func (c *Consumer) LogThroughput(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := c.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := c.Snapshot()
			minutes := interval.Minutes()
			processed := cur.PostsProcessed - prev.PostsProcessed
			accepted := cur.PostsAccepted - prev.PostsAccepted
			var acceptRate float64
			if processed > 0 {
				acceptRate = float64(accepted) / float64(processed) * 100
			}
			writerStats := c.writer.Stats()
			slog.Info("firehose throughput",
				"posts_per_min", float64(processed)/minutes,
				"accepted_per_min", float64(accepted)/minutes,
				"accept_rate_pct", acceptRate,
				"reposts_applied", cur.RepostsApplied-prev.RepostsApplied,
				"errors", cur.Errors-prev.Errors,
				"queue_depth", writerStats.QueueDepth,
				"batches_flushed", writerStats.BatchesFlushed,
				"posts_flushed", writerStats.PostsFlushed,
				"last_seq", cur.LastSeq,
			)
			prev = cur
		}
	}
}
