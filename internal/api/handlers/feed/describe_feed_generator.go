package feed

import "net/http"

// DescribeFeedGeneratorHandler serves app.bsky.feed.describeFeedGenerator.
type DescribeFeedGeneratorHandler struct {
	serviceDID string
	feedURIs   []string
}

type describeResponse struct {
	DID   string          `json:"did"`
	Feeds []describedFeed `json:"feeds"`
}

type describedFeed struct {
	URI string `json:"uri"`
}

// NewDescribeFeedGeneratorHandler creates the describe handler.
func NewDescribeFeedGeneratorHandler(serviceDID string, feedURIs ...string) *DescribeFeedGeneratorHandler {
	return &DescribeFeedGeneratorHandler{serviceDID: serviceDID, feedURIs: feedURIs}
}

// HandleDescribeFeedGenerator lists the feeds this service answers for.
// GET /xrpc/app.bsky.feed.describeFeedGenerator
func (h *DescribeFeedGeneratorHandler) HandleDescribeFeedGenerator(w http.ResponseWriter, r *http.Request) {
	resp := describeResponse{DID: h.serviceDID, Feeds: []describedFeed{}}
	for _, uri := range h.feedURIs {
		resp.Feeds = append(resp.Feeds, describedFeed{URI: uri})
	}
	writeJSON(w, http.StatusOK, resp)
}
