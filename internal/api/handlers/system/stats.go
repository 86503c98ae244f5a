package system

import (
	"log/slog"
	"net/http"

	"github.com/reuning/trending-news-feed/internal/atproto/firehose"
	"github.com/reuning/trending-news-feed/internal/core/domains"
	"github.com/reuning/trending-news-feed/internal/core/feeds"
	"github.com/reuning/trending-news-feed/internal/core/posts"
)

// StatsHandler aggregates storage, ranking, and ingest counters. The
// consumer and writer are nil when the process runs server-only; the
// response then simply omits the ingest section.
type StatsHandler struct {
	repo     posts.Repository
	service  feeds.Service
	filter   *domains.Filter
	consumer *firehose.Consumer
	writer   *posts.BatchWriter
}

// NewStatsHandler creates the stats handler.
func NewStatsHandler(repo posts.Repository, service feeds.Service, filter *domains.Filter, consumer *firehose.Consumer, writer *posts.BatchWriter) *StatsHandler {
	return &StatsHandler{repo: repo, service: service, filter: filter, consumer: consumer, writer: writer}
}

// HandleStats answers GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	dbStats, err := h.repo.GetStats(r.Context())
	if err != nil {
		slog.Error("stats query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "InternalServerError",
			"message": "failed to read database stats",
		})
		return
	}

	body := map[string]any{
		"database": dbStats,
		"ranking":  h.service.Config(),
		"domains": map[string]any{
			"count":            h.filter.Len(),
			"match_subdomains": h.filter.MatchesSubdomains(),
			"hosts":            h.filter.Hosts(),
		},
	}
	if h.consumer != nil {
		body["firehose"] = h.consumer.Snapshot()
	}
	if h.writer != nil {
		body["writer"] = h.writer.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}
