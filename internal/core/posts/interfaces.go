package posts

import (
	"context"
	"time"
)

// Repository persists posts, URLs, and the links between them.
//
// Write flow: the stream consumer stages accepted posts in the BatchWriter,
// which lands them through AddPostsBatch; repost increments bypass staging
// and hit IncrementRepostCount directly. Read flow: the ranking engine and
// the HTTP handlers use the projection methods.
type Repository interface {
	// AddPost inserts the post, upserts its URL (create with share_count 1
	// or increment), and links the two, atomically. It reports whether the
	// post was new; re-sighting an indexed URI is a no-op that leaves
	// share_count untouched.
	AddPost(ctx context.Context, fields PostFields) (bool, error)

	// AddPostsBatch applies AddPost semantics to every element inside one
	// transaction. Duplicates are skipped individually; any other failure
	// rolls back the whole batch. Returns the number inserted.
	AddPostsBatch(ctx context.Context, batch []PostFields) (int, error)

	// IncrementRepostCount bumps the repost counter when the post is
	// indexed and reports whether it was. Unknown URIs are a no-op.
	IncrementRepostCount(ctx context.Context, uri string) (bool, error)

	// DeletePostsInPeriod removes posts with created_at in the half-open
	// window [start, end). A nil bound is unbounded on that side; both nil
	// is a no-op. Links cascade; URLs are left for CleanupOrphanedURLs.
	DeletePostsInPeriod(ctx context.Context, start, end *time.Time) (int64, error)

	// DeleteOldPosts removes posts older than the given number of days.
	DeleteOldPosts(ctx context.Context, days int) (int64, error)

	// CleanupOrphanedURLs deletes URLs no remaining link refers to.
	CleanupOrphanedURLs(ctx context.Context) (int64, error)

	GetPost(ctx context.Context, uri string) (*TrackedPost, error)
	GetURL(ctx context.Context, url string) (*URL, error)
	GetURLShareCount(ctx context.Context, url string) (int, error)
	GetPostsByHost(ctx context.Context, host string, limit, offset int) ([]TrackedPost, error)

	// GetRecentPosts returns posts linked within the last `hours`, most
	// shared first, capped at limit.
	GetRecentPosts(ctx context.Context, hours, limit int) ([]TrackedPost, error)

	GetStats(ctx context.Context) (*Stats, error)

	// Ping verifies the underlying store is reachable.
	Ping(ctx context.Context) error
}
