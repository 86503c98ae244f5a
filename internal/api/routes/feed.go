// Package routes wires the HTTP endpoints to their handlers.
package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/reuning/trending-news-feed/internal/api/handlers/feed"
	"github.com/reuning/trending-news-feed/internal/core/feeds"
)

// RegisterFeedRoutes registers the XRPC feed-generator endpoints.
func RegisterFeedRoutes(r chi.Router, service feeds.Service, serviceDID, feedName, feedURI string) {
	skeletonHandler := feed.NewGetFeedSkeletonHandler(service, feedName)
	describeHandler := feed.NewDescribeFeedGeneratorHandler(serviceDID, feedURI)

	r.Get("/xrpc/app.bsky.feed.getFeedSkeleton", skeletonHandler.HandleGetFeedSkeleton)
	r.Get("/xrpc/app.bsky.feed.describeFeedGenerator", describeHandler.HandleDescribeFeedGenerator)
}
