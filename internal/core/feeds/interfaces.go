package feeds

import (
	"context"

	"github.com/reuning/trending-news-feed/internal/core/posts"
)

// Service is the ranking surface the HTTP handlers consume.
type Service interface {
	FeedSkeleton(ctx context.Context, limit int, cursor string) (*Skeleton, error)
	Config() Config
}

// CandidateSource is the slice of the storage surface ranking reads from.
// posts.Repository satisfies it.
type CandidateSource interface {
	GetRecentPosts(ctx context.Context, hours, limit int) ([]posts.TrackedPost, error)
}
