package posts

import (
	"errors"
	"strings"
)

// Storage sentinels. Repositories translate driver-level misses into these
// so callers never import database/sql.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrURLNotFound  = errors.New("url not found")
)

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrURLNotFound)
}

// IsDuplicate reports whether err is a unique-constraint violation on a
// natural key. SQLite surfaces these as message text, so classification
// string-matches rather than depending on driver error codes.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
