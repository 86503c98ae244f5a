// Package config carries the runtime settings the CLI resolves from flags
// and environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the fully resolved runtime configuration. Values arrive from
// the CLI layer; nothing here reads the environment directly.
type Config struct {
	DatabasePath  string
	ListenAddr    string
	Hostname      string
	PublisherDID  string
	FeedName      string
	RelayHost     string
	DomainsConfig string
	RankingConfig string

	Workers       int
	EventQueue    int
	WriteBuffer   int
	BatchSize     int
	FlushInterval time.Duration
}

// ServiceDID derives the service identity from the configured hostname.
func (c Config) ServiceDID() string {
	return "did:web:" + c.Hostname
}

// FeedDID is the DID feed URIs are published under: the publisher identity
// when one is configured, else the service's own did:web.
func (c Config) FeedDID() string {
	if c.PublisherDID != "" {
		return c.PublisherDID
	}
	return c.ServiceDID()
}

// FeedURI is the at:// identifier of the generator record this service
// answers for.
func (c Config) FeedURI() string {
	return fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", c.FeedDID(), c.FeedName)
}
