package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reuning/trending-news-feed/internal/core/posts"
)

// timeFormat is the stored timestamp layout: fixed-width UTC text, so that
// string comparison in SQL agrees with chronological order and half-open
// created_at windows behave.
const timeFormat = "2006-01-02 15:04:05.000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

type sqlitePostRepo struct {
	db *sql.DB
}

// NewPostRepository creates a SQLite-backed posts repository.
func NewPostRepository(db *sql.DB) posts.Repository {
	return &sqlitePostRepo{db: db}
}

// AddPost inserts one post with its URL upsert and link, atomically.
func (r *sqlitePostRepo) AddPost(ctx context.Context, fields posts.PostFields) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertOne(ctx, tx, fields, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit post insert: %w", err)
	}
	return inserted, nil
}

// AddPostsBatch lands a writer batch in one transaction. Duplicate posts
// are skipped individually; any other failure rolls the whole batch back.
func (r *sqlitePostRepo) AddPostsBatch(ctx context.Context, batch []posts.PostFields) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	inserted := 0
	for _, fields := range batch {
		ok, err := insertOne(ctx, tx, fields, now)
		if err != nil {
			return 0, fmt.Errorf("batch insert %s: %w", fields.URI, err)
		}
		if ok {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// insertOne applies the add-post write order: post first, so that a
// duplicate URI bails out before the URL upsert and never inflates
// share_count. Returns false without error when the post already existed.
func insertOne(ctx context.Context, tx *sql.Tx, fields posts.PostFields, indexedAt time.Time) (bool, error) {
	if fields.URI == "" || fields.URL == "" || fields.Host == "" {
		return false, fmt.Errorf("post %q missing url or host", fields.URI)
	}

	var uri string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO posts (uri, cid, author_did, text, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO NOTHING
		RETURNING uri
	`, fields.URI, fields.CID, fields.AuthorDID, fields.Text,
		formatTime(fields.CreatedAt), formatTime(indexedAt)).Scan(&uri)
	if errors.Is(err, sql.ErrNoRows) {
		// Already indexed: idempotent sighting, leave the URL alone.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}

	var urlID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO urls (url, host, first_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET share_count = share_count + 1
		RETURNING id
	`, fields.URL, fields.Host, formatTime(indexedAt)).Scan(&urlID)
	if err != nil {
		return false, fmt.Errorf("upsert url: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO post_urls (post_uri, url_id, shared_at)
		VALUES (?, ?, ?)
	`, fields.URI, urlID, formatTime(indexedAt)); err != nil {
		return false, fmt.Errorf("insert link: %w", err)
	}
	return true, nil
}

// IncrementRepostCount bumps the counter when the post is indexed, and
// reports whether it was. Reposts of untracked posts are a no-op.
func (r *sqlitePostRepo) IncrementRepostCount(ctx context.Context, uri string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts SET repost_count = repost_count + 1 WHERE uri = ?
	`, uri)
	if err != nil {
		return false, fmt.Errorf("increment repost count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment repost count: %w", err)
	}
	return n > 0, nil
}

// DeletePostsInPeriod removes posts with created_at in [start, end). Links
// cascade with the posts; URLs stay for CleanupOrphanedURLs.
func (r *sqlitePostRepo) DeletePostsInPeriod(ctx context.Context, start, end *time.Time) (int64, error) {
	if start == nil && end == nil {
		return 0, nil
	}

	query := "DELETE FROM posts WHERE 1=1"
	var args []any
	if start != nil {
		query += " AND created_at >= ?"
		args = append(args, formatTime(*start))
	}
	if end != nil {
		query += " AND created_at < ?"
		args = append(args, formatTime(*end))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete posts in period: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOldPosts removes posts older than the given number of days.
func (r *sqlitePostRepo) DeleteOldPosts(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return r.DeletePostsInPeriod(ctx, nil, &cutoff)
}

// CleanupOrphanedURLs deletes URLs no link refers to anymore.
func (r *sqlitePostRepo) CleanupOrphanedURLs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM urls
		WHERE id NOT IN (SELECT DISTINCT url_id FROM post_urls)
	`)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphaned urls: %w", err)
	}
	return res.RowsAffected()
}

// trackedPostColumns is the flat post-with-URL projection every read query
// selects, in scanTrackedPost order.
const trackedPostColumns = `
	p.uri, p.cid, p.author_did, COALESCE(p.text, ''),
	p.created_at, p.indexed_at, p.repost_count,
	u.url, u.host, u.first_seen, u.share_count, pu.shared_at
`

const trackedPostJoin = `
	FROM posts p
	JOIN post_urls pu ON pu.post_uri = p.uri
	JOIN urls u ON u.id = pu.url_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackedPost(row rowScanner) (posts.TrackedPost, error) {
	var tp posts.TrackedPost
	var createdAt, indexedAt, firstSeen, sharedAt string
	err := row.Scan(
		&tp.URI, &tp.CID, &tp.AuthorDID, &tp.Text,
		&createdAt, &indexedAt, &tp.RepostCount,
		&tp.URL, &tp.Host, &firstSeen, &tp.ShareCount, &sharedAt,
	)
	if err != nil {
		return tp, err
	}
	for _, f := range []struct {
		src string
		dst *time.Time
	}{
		{createdAt, &tp.CreatedAt},
		{indexedAt, &tp.IndexedAt},
		{firstSeen, &tp.URLFirstSeen},
		{sharedAt, &tp.SharedAt},
	} {
		t, err := parseTime(f.src)
		if err != nil {
			return tp, fmt.Errorf("parse stored timestamp %q: %w", f.src, err)
		}
		*f.dst = t
	}
	return tp, nil
}

func (r *sqlitePostRepo) GetPost(ctx context.Context, uri string) (*posts.TrackedPost, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+trackedPostColumns+trackedPostJoin+" WHERE p.uri = ?", uri)
	tp, err := scanTrackedPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, posts.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &tp, nil
}

func (r *sqlitePostRepo) GetURL(ctx context.Context, url string) (*posts.URL, error) {
	var u posts.URL
	var firstSeen string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, url, host, first_seen, share_count FROM urls WHERE url = ?
	`, url).Scan(&u.ID, &u.URL, &u.Host, &firstSeen, &u.ShareCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, posts.ErrURLNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get url: %w", err)
	}
	u.FirstSeen, err = parseTime(firstSeen)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", firstSeen, err)
	}
	return &u, nil
}

func (r *sqlitePostRepo) GetURLShareCount(ctx context.Context, url string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT share_count FROM urls WHERE url = ?", url).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, posts.ErrURLNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get url share count: %w", err)
	}
	return count, nil
}

func (r *sqlitePostRepo) GetPostsByHost(ctx context.Context, host string, limit, offset int) ([]posts.TrackedPost, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+trackedPostColumns+trackedPostJoin+`
		WHERE u.host = ?
		ORDER BY pu.shared_at DESC
		LIMIT ? OFFSET ?`, host, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get posts by host: %w", err)
	}
	defer rows.Close()
	return collectTrackedPosts(rows)
}

// GetRecentPosts returns posts linked within the last `hours`, most shared
// first. This is the candidate feed the ranking engine over-reads from.
func (r *sqlitePostRepo) GetRecentPosts(ctx context.Context, hours, limit int) ([]posts.TrackedPost, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+trackedPostColumns+trackedPostJoin+`
		WHERE pu.shared_at >= ?
		ORDER BY u.share_count DESC, pu.shared_at DESC
		LIMIT ?`, formatTime(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("get recent posts: %w", err)
	}
	defer rows.Close()
	return collectTrackedPosts(rows)
}

func collectTrackedPosts(rows *sql.Rows) ([]posts.TrackedPost, error) {
	var out []posts.TrackedPost
	for rows.Next() {
		tp, err := scanTrackedPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		out = append(out, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post rows: %w", err)
	}
	return out, nil
}

func (r *sqlitePostRepo) GetStats(ctx context.Context) (*posts.Stats, error) {
	stats := &posts.Stats{}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&stats.TotalPosts); err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM urls").Scan(&stats.TotalURLs); err != nil {
		return nil, fmt.Errorf("count urls: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM post_urls").Scan(&stats.TotalLinks); err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}

	cutoff := formatTime(time.Now().UTC().Add(-24 * time.Hour))
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM posts WHERE indexed_at >= ?", cutoff).Scan(&stats.PostsLast24h); err != nil {
		return nil, fmt.Errorf("count recent posts: %w", err)
	}

	var latest sql.NullString
	if err := r.db.QueryRowContext(ctx,
		"SELECT MAX(indexed_at) FROM posts").Scan(&latest); err != nil {
		return nil, fmt.Errorf("latest indexed_at: %w", err)
	}
	if latest.Valid {
		t, err := parseTime(latest.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp %q: %w", latest.String, err)
		}
		stats.LatestIndexedAt = &t
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT host, COUNT(*) AS n FROM urls
		GROUP BY host
		ORDER BY n DESC, host ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top hosts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var hc posts.HostCount
		if err := rows.Scan(&hc.Host, &hc.Count); err != nil {
			return nil, fmt.Errorf("scan host count: %w", err)
		}
		stats.TopHosts = append(stats.TopHosts, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate host counts: %w", err)
	}
	return stats, nil
}

func (r *sqlitePostRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
