// Package urls canonicalizes external links pulled off the firehose so the
// same article shared through different channels collapses to one URL row.
package urls

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrNotAbsolute is returned for inputs without a scheme and authority.
var ErrNotAbsolute = errors.New("url must be absolute")

// Tracking and attribution parameters dropped during normalization,
// matched case-insensitively against query parameter names.
var trackingParams = map[string]struct{}{
	// Google / Microsoft analytics
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {},
	"utm_term": {}, "utm_content": {}, "gclid": {}, "msclkid": {},
	"_ga": {}, "_gl": {},

	// Facebook
	"fbclid": {},

	// Mailchimp
	"mc_cid": {}, "mc_eid": {},

	// Publisher attribution
	"ref": {}, "source": {}, "campaign": {}, "link_source": {},
	"taid": {}, "user_email": {},
}

// Normalizer canonicalizes URLs. The zero value strips the recognized
// tracking parameters; set KeepTrackingParams to leave queries untouched.
type Normalizer struct {
	KeepTrackingParams bool
}

// Normalize canonicalizes raw and returns the normalized URL together with
// the registrable host: lower-cased, leading "www." label removed, port
// stripped. The URL itself keeps an explicit port. Normalize is idempotent.
func (n Normalizer) Normalize(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", "", ErrNotAbsolute
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", "", ErrNotAbsolute
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	// Collapse http onto https; anything else passes through and is left
	// for the domain filter to reject.
	if u.Scheme == "http" {
		u.Scheme = "https"
	}

	u.Fragment = ""
	u.RawFragment = ""

	if !n.KeepTrackingParams && u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if _, drop := trackingParams[strings.ToLower(name)]; drop {
				q.Del(name)
			}
		}
		u.RawQuery = q.Encode()
		if u.RawQuery == "" {
			u.ForceQuery = false
		}
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), host, nil
}
