package feeds

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// cursorDelimiter separates score from URI in the cursor payload, following
// the Bluesky convention.
const cursorDelimiter = "::"

// Cursor marks the last item emitted on a page. The wire form is the
// base64 (URL alphabet) encoding of "<score>::<uri>" and is part of the
// feed service's external contract.
type Cursor struct {
	Score float64
	URI   string
}

// Encode serializes the cursor to its wire form.
func (c Cursor) Encode() string {
	payload := strconv.FormatFloat(c.Score, 'g', -1, 64) + cursorDelimiter + c.URI
	return base64.URLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a client-supplied cursor. Callers treat any error as
// "no cursor": stale or garbled cursors must never fail a feed request.
func ParseCursor(raw string) (Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return Cursor{}, fmt.Errorf("decoding cursor: %w", err)
	}
	scorePart, uri, found := strings.Cut(string(data), cursorDelimiter)
	if !found || uri == "" {
		return Cursor{}, errors.New("malformed cursor payload")
	}
	score, err := strconv.ParseFloat(scorePart, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("parsing cursor score: %w", err)
	}
	return Cursor{Score: score, URI: uri}, nil
}
