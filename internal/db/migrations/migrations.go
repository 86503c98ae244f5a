// Package migrations embeds the goose migration scripts so the binary can
// bring a fresh database file up to the current schema on startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
