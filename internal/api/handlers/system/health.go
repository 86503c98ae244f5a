package system

import (
	"net/http"
	"time"

	"github.com/reuning/trending-news-feed/internal/core/domains"
	"github.com/reuning/trending-news-feed/internal/core/posts"
)

// HealthHandler reports component readiness. The endpoint returns 503 when
// the database is unreachable so load balancers stop routing reads here.
type HealthHandler struct {
	repo   posts.Repository
	filter *domains.Filter
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(repo posts.Repository, filter *domains.Filter) *HealthHandler {
	return &HealthHandler{repo: repo, filter: filter}
}

// HandleHealth answers GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	if err := h.repo.Ping(r.Context()); err != nil {
		components["database"] = "error: " + err.Error()
		healthy = false
	} else {
		components["database"] = "ok"
	}

	if h.filter.Len() == 0 {
		// Serving still works with an empty allow-list; ingest does not.
		components["domain_filter"] = "empty"
	} else {
		components["domain_filter"] = "ok"
	}

	body := map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	}

	if healthy {
		if stats, err := h.repo.GetStats(r.Context()); err == nil {
			body["database_stats"] = stats
		} else {
			components["database"] = "error: " + err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
