package system

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	bsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/reuning/trending-news-feed/internal/core/feeds"
	"github.com/reuning/trending-news-feed/internal/core/posts"
)

const previewSize = 20

// hydrateBatchSize is the AppView's getPosts URI cap.
const hydrateBatchSize = 25

// PreviewHandler renders the current top of the feed as a plain HTML table
// for operators: score inputs from local storage, text and author hydrated
// from the public AppView. Hydration is best effort; the page degrades to
// URI-only rows rather than failing.
type PreviewHandler struct {
	service feeds.Service
	repo    posts.Repository
	appview *xrpc.Client
}

// NewPreviewHandler creates the preview handler. appviewHost is typically
// https://public.api.bsky.app.
func NewPreviewHandler(service feeds.Service, repo posts.Repository, appviewHost string) *PreviewHandler {
	return &PreviewHandler{
		service: service,
		repo:    repo,
		appview: &xrpc.Client{Host: appviewHost},
	}
}

type previewRow struct {
	Rank     int
	URI      string
	Author   string
	Text     string
	URL      string
	Host     string
	Shares   int
	Reposts  int
	AgeHours float64
}

var previewTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Feed preview</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>Feed preview — top {{len .Rows}}</h1>
<p>Generated {{.GeneratedAt}}</p>
<table>
<tr><th>#</th><th>Author</th><th>Post</th><th>Link</th><th>Shares</th><th>Reposts</th><th>URL age (h)</th></tr>
{{range .Rows}}
<tr>
<td class="num">{{.Rank}}</td>
<td>{{if .Author}}{{.Author}}{{else}}—{{end}}</td>
<td>{{if .Text}}{{.Text}}{{else}}{{.URI}}{{end}}</td>
<td><a href="{{.URL}}">{{.Host}}</a></td>
<td class="num">{{.Shares}}</td>
<td class="num">{{.Reposts}}</td>
<td class="num">{{printf "%.1f" .AgeHours}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// HandlePreview answers GET /preview.
func (h *PreviewHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	skeleton, err := h.service.FeedSkeleton(ctx, previewSize, "")
	if err != nil {
		slog.Error("preview ranking failed", "error", err)
		http.Error(w, "failed to compute feed", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	rows := make([]previewRow, 0, len(skeleton.Feed))
	uris := make([]string, 0, len(skeleton.Feed))
	for i, entry := range skeleton.Feed {
		row := previewRow{Rank: i + 1, URI: entry.Post}
		if tracked, err := h.repo.GetPost(ctx, entry.Post); err == nil {
			row.URL = tracked.URL
			row.Host = tracked.Host
			row.Shares = tracked.ShareCount
			row.Reposts = tracked.RepostCount
			row.AgeHours = now.Sub(tracked.URLFirstSeen).Hours()
		}
		rows = append(rows, row)
		uris = append(uris, entry.Post)
	}

	h.hydrate(ctx, uris, rows)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := previewTemplate.Execute(w, map[string]any{
		"Rows":        rows,
		"GeneratedAt": now.Format(time.RFC3339),
	}); err != nil {
		slog.Error("preview render failed", "error", err)
	}
}

// hydrate fills author and text from the AppView in batches. Failures leave
// the affected rows URI-only.
func (h *PreviewHandler) hydrate(ctx context.Context, uris []string, rows []previewRow) {
	byURI := make(map[string]*previewRow, len(rows))
	for i := range rows {
		byURI[rows[i].URI] = &rows[i]
	}

	for start := 0; start < len(uris); start += hydrateBatchSize {
		end := min(start+hydrateBatchSize, len(uris))
		out, err := bsky.FeedGetPosts(ctx, h.appview, uris[start:end])
		if err != nil {
			slog.Warn("preview hydration failed", "batch_start", start, "error", err)
			continue
		}
		for _, view := range out.Posts {
			row, ok := byURI[view.Uri]
			if !ok {
				continue
			}
			if view.Author != nil {
				row.Author = "@" + view.Author.Handle
			}
			row.Text = recordText(view.Record)
		}
	}
}

func recordText(record *lexutil.LexiconTypeDecoder) string {
	if record == nil {
		return ""
	}
	if post, ok := record.Val.(*bsky.FeedPost); ok {
		return post.Text
	}
	return ""
}
