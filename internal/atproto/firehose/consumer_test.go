package firehose

import (
	"context"
	"sync"
	"testing"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	bsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/ipfs/go-cid"

	"github.com/reuning/trending-news-feed/internal/core/domains"
	"github.com/reuning/trending-news-feed/internal/core/posts"
)

func mustLexLink(t *testing.T) *lexutil.LexLink {
	t.Helper()
	c, err := cid.Decode("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
	if err != nil {
		t.Fatalf("decode test cid: %v", err)
	}
	link := lexutil.LexLink(c)
	return &link
}

// mockRepository captures batch writes and repost increments.
type mockRepository struct {
	mu         sync.Mutex
	batches    [][]posts.PostFields
	increments []string
	known      map[string]bool
}

func (m *mockRepository) AddPostsBatch(ctx context.Context, batch []posts.PostFields) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]posts.PostFields, len(batch))
	copy(copied, batch)
	m.batches = append(m.batches, copied)
	return len(batch), nil
}

func (m *mockRepository) IncrementRepostCount(ctx context.Context, uri string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments = append(m.increments, uri)
	return m.known[uri], nil
}

func (m *mockRepository) AddPost(ctx context.Context, fields posts.PostFields) (bool, error) {
	return true, nil
}

func (m *mockRepository) DeletePostsInPeriod(ctx context.Context, start, end *time.Time) (int64, error) {
	return 0, nil
}

func (m *mockRepository) DeleteOldPosts(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

func (m *mockRepository) CleanupOrphanedURLs(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockRepository) GetPost(ctx context.Context, uri string) (*posts.TrackedPost, error) {
	return nil, posts.ErrPostNotFound
}

func (m *mockRepository) GetURL(ctx context.Context, url string) (*posts.URL, error) {
	return nil, posts.ErrURLNotFound
}

func (m *mockRepository) GetURLShareCount(ctx context.Context, url string) (int, error) {
	return 0, nil
}

func (m *mockRepository) GetPostsByHost(ctx context.Context, host string, limit, offset int) ([]posts.TrackedPost, error) {
	return nil, nil
}

func (m *mockRepository) GetRecentPosts(ctx context.Context, hours, limit int) ([]posts.TrackedPost, error) {
	return nil, nil
}

func (m *mockRepository) GetStats(ctx context.Context) (*posts.Stats, error) {
	return &posts.Stats{}, nil
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }

func newTestConsumer(t *testing.T) (*Consumer, *mockRepository, *posts.BatchWriter) {
	t.Helper()
	repo := &mockRepository{known: map[string]bool{}}
	// Large batch size so nothing flushes until the test asks.
	writer := posts.NewBatchWriter(repo, 1000, 500, time.Minute)
	filter := domains.New(domains.Config{
		Domains:         []string{"nytimes.com"},
		MatchSubdomains: true,
	})
	return NewConsumer(repo, writer, filter), repo, writer
}

func TestHandlePostAcceptsAllowedLink(t *testing.T) {
	consumer, repo, writer := newTestConsumer(t)
	ctx := context.Background()

	post := &bsky.FeedPost{
		Text:      "big story",
		CreatedAt: "2024-01-15T10:00:00Z",
		Embed:     externalEmbed("https://www.nytimes.com/2024/01/15/world/article.html?utm_source=twitter"),
	}
	consumer.handlePost(ctx, "did:plc:userA", "app.bsky.feed.post/a1", "bafyreicid", post)

	if depth := writer.QueueDepth(); depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}
	writer.Flush(ctx)

	if len(repo.batches) != 1 || len(repo.batches[0]) != 1 {
		t.Fatalf("flushed batches = %v, want one batch of one post", repo.batches)
	}
	got := repo.batches[0][0]
	if got.URI != "at://did:plc:userA/app.bsky.feed.post/a1" {
		t.Errorf("URI = %q, want at://did:plc:userA/app.bsky.feed.post/a1", got.URI)
	}
	if got.URL != "https://nytimes.com/2024/01/15/world/article.html" {
		t.Errorf("URL = %q, want normalized without tracking params", got.URL)
	}
	if got.Host != "nytimes.com" {
		t.Errorf("Host = %q, want nytimes.com", got.Host)
	}
	if got.CID != "bafyreicid" {
		t.Errorf("CID = %q, want bafyreicid", got.CID)
	}
	want := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !got.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want)
	}

	stats := consumer.Snapshot()
	if stats.PostsProcessed != 1 || stats.PostsWithLinks != 1 || stats.PostsAccepted != 1 {
		t.Errorf("counters = %+v, want processed/with_links/accepted all 1", stats)
	}
}

func TestHandlePostRejectsUnlistedHost(t *testing.T) {
	consumer, _, writer := newTestConsumer(t)

	post := &bsky.FeedPost{
		Text:  "elsewhere",
		Embed: externalEmbed("https://fakenytimes.com/story"),
	}
	consumer.handlePost(context.Background(), "did:plc:userB", "app.bsky.feed.post/b1", "cid", post)

	if depth := writer.QueueDepth(); depth != 0 {
		t.Errorf("queue depth = %d, want 0 for unlisted host", depth)
	}
	stats := consumer.Snapshot()
	if stats.PostsWithLinks != 1 || stats.PostsAccepted != 0 {
		t.Errorf("counters = %+v, want with_links 1, accepted 0", stats)
	}
}

func TestHandlePostSkipsImageOnlyRecord(t *testing.T) {
	consumer, _, writer := newTestConsumer(t)

	post := &bsky.FeedPost{Text: "nice photo", Embed: imagesEmbed()}
	consumer.handlePost(context.Background(), "did:plc:userC", "app.bsky.feed.post/c1", "cid", post)

	if depth := writer.QueueDepth(); depth != 0 {
		t.Errorf("queue depth = %d, want 0 for image-only record", depth)
	}
	stats := consumer.Snapshot()
	if stats.PostsWithLinks != 0 {
		t.Errorf("PostsWithLinks = %d, want 0 (pre-filter should drop it)", stats.PostsWithLinks)
	}
}

func TestHandlePostBadCreatedAtFallsBackToNow(t *testing.T) {
	consumer, repo, writer := newTestConsumer(t)
	ctx := context.Background()

	before := time.Now().UTC()
	post := &bsky.FeedPost{
		Text:      "clock skew",
		CreatedAt: "not-a-timestamp",
		Embed:     externalEmbed("https://nytimes.com/skew"),
	}
	consumer.handlePost(ctx, "did:plc:userD", "app.bsky.feed.post/d1", "cid", post)
	writer.Flush(ctx)

	if len(repo.batches) != 1 {
		t.Fatalf("flushed batches = %d, want 1", len(repo.batches))
	}
	got := repo.batches[0][0].CreatedAt
	if got.Before(before.Add(-time.Second)) || got.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("CreatedAt fallback = %v, want roughly now", got)
	}
}

func TestHandleRepost(t *testing.T) {
	consumer, repo, _ := newTestConsumer(t)
	ctx := context.Background()

	tracked := "at://did:plc:userA/app.bsky.feed.post/a1"
	repo.known[tracked] = true

	consumer.handleRepost(ctx, &bsky.FeedRepost{
		Subject: &comatproto.RepoStrongRef{Uri: tracked, Cid: "cid1"},
	})
	consumer.handleRepost(ctx, &bsky.FeedRepost{
		Subject: &comatproto.RepoStrongRef{Uri: "at://did:plc:x/app.bsky.feed.post/untracked", Cid: "cid2"},
	})
	consumer.handleRepost(ctx, &bsky.FeedRepost{})

	if len(repo.increments) != 2 {
		t.Fatalf("increments = %v, want 2 attempts", repo.increments)
	}
	stats := consumer.Snapshot()
	if stats.RepostsProcessed != 3 {
		t.Errorf("RepostsProcessed = %d, want 3", stats.RepostsProcessed)
	}
	if stats.RepostsApplied != 1 {
		t.Errorf("RepostsApplied = %d, want 1 (only the tracked subject)", stats.RepostsApplied)
	}
}

func TestHandleCommitSkipsTooBig(t *testing.T) {
	consumer, _, writer := newTestConsumer(t)

	err := consumer.HandleCommit(context.Background(), &comatproto.SyncSubscribeRepos_Commit{
		Repo:   "did:plc:userE",
		Seq:    42,
		TooBig: true,
	})
	if err != nil {
		t.Fatalf("HandleCommit() error: %v", err)
	}
	if depth := writer.QueueDepth(); depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}
	if got := consumer.LastSeq(); got != 42 {
		t.Errorf("LastSeq() = %d, want 42 (sequence recorded even for skipped commits)", got)
	}
}

func TestHandleCommitGarbageBlocks(t *testing.T) {
	consumer, _, _ := newTestConsumer(t)

	cidLink := mustLexLink(t)
	err := consumer.HandleCommit(context.Background(), &comatproto.SyncSubscribeRepos_Commit{
		Repo:   "did:plc:userF",
		Seq:    7,
		Blocks: []byte{0xde, 0xad, 0xbe, 0xef},
		Ops: []*comatproto.SyncSubscribeRepos_RepoOp{{
			Action: "create",
			Path:   "app.bsky.feed.post/abc",
			Cid:    cidLink,
		}},
	})
	if err != nil {
		t.Fatalf("HandleCommit() error: %v, want nil even for corrupt blocks", err)
	}
	if stats := consumer.Snapshot(); stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
}
