// Package feed implements the XRPC feed-generator endpoints.
package feed

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/reuning/trending-news-feed/internal/core/feeds"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// GetFeedSkeletonHandler serves app.bsky.feed.getFeedSkeleton.
type GetFeedSkeletonHandler struct {
	service  feeds.Service
	feedName string
}

// NewGetFeedSkeletonHandler creates the skeleton handler. feedName is the
// record key the requested feed URI must end with.
func NewGetFeedSkeletonHandler(service feeds.Service, feedName string) *GetFeedSkeletonHandler {
	return &GetFeedSkeletonHandler{service: service, feedName: feedName}
}

// HandleGetFeedSkeleton returns one ranked page of post URIs.
// GET /xrpc/app.bsky.feed.getFeedSkeleton?feed=at://…/app.bsky.feed.generator/<name>&limit=50&cursor=…
func (h *GetFeedSkeletonHandler) HandleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	feedURI := r.URL.Query().Get("feed")
	if feedURI == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "missing feed parameter")
		return
	}
	if !strings.HasSuffix(feedURI, "/app.bsky.feed.generator/"+h.feedName) {
		writeError(w, http.StatusBadRequest, "UnsupportedAlgorithm", "unknown feed: "+feedURI)
		return
	}

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > maxLimit {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	// An invalid cursor is tolerated downstream: the engine treats it as a
	// first-page request.
	skeleton, err := h.service.FeedSkeleton(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		slog.Error("feed skeleton failed", "feed", feedURI, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "failed to compute feed")
		return
	}
	if skeleton.Feed == nil {
		skeleton.Feed = []feeds.SkeletonEntry{}
	}
	writeJSON(w, http.StatusOK, skeleton)
}
