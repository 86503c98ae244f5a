// Package posts defines the entities the feed generator tracks and the
// storage contract they persist through: posts, normalized URLs, and the
// link rows tying them together.
package posts

import "time"

// PostFields is the ingest payload: everything the stream consumer learns
// about an accepted post before it is staged for storage.
type PostFields struct {
	URI       string    `json:"uri"`
	CID       string    `json:"cid"`
	AuthorDID string    `json:"author_did"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
	Host      string    `json:"host"`
}

// Post is one social-network record referencing a tracked URL. A post is
// created once on first sighting; later sightings of the same URI are
// ignored.
type Post struct {
	URI         string    `json:"uri" db:"uri"`
	CID         string    `json:"cid" db:"cid"`
	AuthorDID   string    `json:"author_did" db:"author_did"`
	Text        string    `json:"text,omitempty" db:"text"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	IndexedAt   time.Time `json:"indexed_at" db:"indexed_at"`
	RepostCount int       `json:"repost_count" db:"repost_count"`
}

// URL is a normalized link observed in at least one post. ShareCount is the
// number of distinct accepted sightings and is at least 1.
type URL struct {
	ID         int64     `json:"id" db:"id"`
	URL        string    `json:"url" db:"url"`
	Host       string    `json:"host" db:"host"`
	FirstSeen  time.Time `json:"first_seen" db:"first_seen"`
	ShareCount int       `json:"share_count" db:"share_count"`
}

// TrackedPost is the flat post-with-URL projection read queries return.
type TrackedPost struct {
	URI          string    `json:"uri"`
	CID          string    `json:"cid"`
	AuthorDID    string    `json:"author_did"`
	Text         string    `json:"text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	IndexedAt    time.Time `json:"indexed_at"`
	RepostCount  int       `json:"repost_count"`
	URL          string    `json:"url"`
	Host         string    `json:"host"`
	URLFirstSeen time.Time `json:"url_first_seen"`
	ShareCount   int       `json:"share_count"`
	SharedAt     time.Time `json:"shared_at"`
}

// Stats is the aggregate storage snapshot served by /stats and /health.
type Stats struct {
	TotalPosts      int64       `json:"total_posts"`
	TotalURLs       int64       `json:"total_urls"`
	TotalLinks      int64       `json:"total_links"`
	PostsLast24h    int64       `json:"posts_last_24h"`
	TopHosts        []HostCount `json:"top_hosts"`
	LatestIndexedAt *time.Time  `json:"latest_indexed_at,omitempty"`
}

// HostCount pairs a host with the number of tracked URLs it carries.
type HostCount struct {
	Host  string `json:"host"`
	Count int64  `json:"count"`
}
