// Package system implements the operational surface: service descriptor,
// DID document, health, stats, and the operator preview page.
package system

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ServiceVersion is reported on / and /health.
const ServiceVersion = "1.1.0"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// RootHandler serves the static service descriptor.
type RootHandler struct {
	serviceDID string
}

// NewRootHandler creates the descriptor handler.
func NewRootHandler(serviceDID string) *RootHandler {
	return &RootHandler{serviceDID: serviceDID}
}

// HandleRoot answers GET / with the service identity card.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        "trending-news-feed",
		"description": "Bluesky feed generator ranking posts that link to allow-listed news sites",
		"did":         h.serviceDID,
		"version":     ServiceVersion,
	})
}

// DIDDocumentHandler serves the did:web identity document.
type DIDDocumentHandler struct {
	serviceDID string
	hostname   string
}

// NewDIDDocumentHandler creates the DID document handler.
func NewDIDDocumentHandler(serviceDID, hostname string) *DIDDocumentHandler {
	return &DIDDocumentHandler{serviceDID: serviceDID, hostname: hostname}
}

// HandleDIDDocument answers GET /.well-known/did.json. The document is what
// the AppView resolves to verify this endpoint answers for the service DID.
func (h *DIDDocumentHandler) HandleDIDDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       h.serviceDID,
		"service": []map[string]string{{
			"id":              "#bsky_fg",
			"type":            "BskyFeedGenerator",
			"serviceEndpoint": "https://" + h.hostname,
		}},
	})
}
