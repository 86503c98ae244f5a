package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/reuning/trending-news-feed/internal/api/handlers/system"
	"github.com/reuning/trending-news-feed/internal/atproto/firehose"
	"github.com/reuning/trending-news-feed/internal/core/domains"
	"github.com/reuning/trending-news-feed/internal/core/feeds"
	"github.com/reuning/trending-news-feed/internal/core/posts"
)

// SystemDeps carries everything the operational endpoints read. Consumer
// and Writer are nil in server-only mode.
type SystemDeps struct {
	Repo        posts.Repository
	Service     feeds.Service
	Filter      *domains.Filter
	Consumer    *firehose.Consumer
	Writer      *posts.BatchWriter
	ServiceDID  string
	Hostname    string
	AppViewHost string
}

// RegisterSystemRoutes registers the descriptor, DID document, health,
// stats, and preview endpoints.
func RegisterSystemRoutes(r chi.Router, deps SystemDeps) {
	rootHandler := system.NewRootHandler(deps.ServiceDID)
	didHandler := system.NewDIDDocumentHandler(deps.ServiceDID, deps.Hostname)
	healthHandler := system.NewHealthHandler(deps.Repo, deps.Filter)
	statsHandler := system.NewStatsHandler(deps.Repo, deps.Service, deps.Filter, deps.Consumer, deps.Writer)
	previewHandler := system.NewPreviewHandler(deps.Service, deps.Repo, deps.AppViewHost)

	r.Get("/", rootHandler.HandleRoot)
	r.Get("/.well-known/did.json", didHandler.HandleDIDDocument)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/stats", statsHandler.HandleStats)
	r.Get("/preview", previewHandler.HandlePreview)
}
