package firehose

import (
	"strings"

	bsky "github.com/bluesky-social/indigo/api/bsky"
)

// hasLinkIndication is the cheap pre-filter: it reports whether a post
// record carries any sign of a link, so that records with no chance of
// passing extraction are dropped before the URL work.
func hasLinkIndication(post *bsky.FeedPost) bool {
	for _, facet := range post.Facets {
		if facet == nil {
			continue
		}
		for _, feature := range facet.Features {
			if feature != nil && feature.RichtextFacet_Link != nil {
				return true
			}
		}
	}

	// Legacy entities predate facets but still appear on old clients.
	for _, entity := range post.Entities {
		if entity != nil && entity.Type == "link" {
			return true
		}
	}

	if embed := post.Embed; embed != nil {
		if embed.EmbedExternal != nil {
			return true
		}
		if rwm := embed.EmbedRecordWithMedia; rwm != nil && rwm.Media != nil && rwm.Media.EmbedExternal != nil {
			return true
		}
	}

	return strings.Contains(post.Text, "http://") || strings.Contains(post.Text, "https://")
}

// extractExternalURL pulls the post's primary URL: the external-link embed
// first, then an external link nested in a record-with-media embed. Other
// embed variants (images, quotes) yield nothing; facet and text links are
// deliberately not extracted, they only gate the pre-filter.
func extractExternalURL(post *bsky.FeedPost) string {
	embed := post.Embed
	if embed == nil {
		return ""
	}
	if ext := embed.EmbedExternal; ext != nil && ext.External != nil {
		return ext.External.Uri
	}
	if rwm := embed.EmbedRecordWithMedia; rwm != nil && rwm.Media != nil {
		if ext := rwm.Media.EmbedExternal; ext != nil && ext.External != nil {
			return ext.External.Uri
		}
	}
	return ""
}
