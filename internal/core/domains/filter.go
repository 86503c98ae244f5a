// Package domains holds the allow-list that decides which link hosts the
// ingest pipeline keeps.
package domains

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// Config is the on-disk shape of the allow-list document.
type Config struct {
	Domains         []string `json:"domains"`
	MatchSubdomains bool     `json:"match_subdomains"`
}

// Filter answers allow/deny for registrable hosts. All methods are safe for
// concurrent use; the ingest workers read it while SIGHUP reloads swap it.
type Filter struct {
	mu              sync.RWMutex
	path            string
	hosts           map[string]struct{}
	matchSubdomains bool
}

// New builds a filter from an in-memory config.
func New(cfg Config) *Filter {
	f := &Filter{hosts: make(map[string]struct{})}
	f.apply(cfg)
	return f
}

// Load builds a filter from the JSON document at path. Loading never fails:
// a missing or malformed file yields an empty filter and a logged warning,
// so a bad deploy cannot take the ingester down with it.
func Load(path string) *Filter {
	f := New(Config{})
	f.path = path
	if err := f.Reload(); err != nil {
		slog.Warn("domain allow-list unavailable, starting with empty set", "path", path, "error", err)
	}
	return f
}

// Reload re-reads the config file and replaces the set atomically. On
// failure the current set is kept.
func (f *Filter) Reload() error {
	if f.path == "" {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("reading domains config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing domains config: %w", err)
	}
	f.apply(cfg)
	slog.Info("domain allow-list loaded", "path", f.path, "domains", len(cfg.Domains), "match_subdomains", cfg.MatchSubdomains)
	return nil
}

func (f *Filter) apply(cfg Config) {
	hosts := make(map[string]struct{}, len(cfg.Domains))
	for _, d := range cfg.Domains {
		if h := canonicalHost(d); h != "" {
			hosts[h] = struct{}{}
		}
	}
	f.mu.Lock()
	f.hosts = hosts
	f.matchSubdomains = cfg.MatchSubdomains
	f.mu.Unlock()
}

// Allows reports whether host is on the allow-list. With subdomain matching
// enabled a host is also allowed when it is a strict DNS-label suffix match
// of a listed domain; substring lookalikes never match.
func (f *Filter) Allows(host string) bool {
	q := canonicalHost(host)
	if q == "" {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, ok := f.hosts[q]; ok {
		return true
	}
	if !f.matchSubdomains {
		return false
	}
	// Walk up one label at a time: x.y.d matches d but fake-d never does.
	for {
		i := strings.Index(q, ".")
		if i < 0 {
			return false
		}
		q = q[i+1:]
		if _, ok := f.hosts[q]; ok {
			return true
		}
	}
}

// Add inserts a host into the in-memory set. Not persisted.
func (f *Filter) Add(host string) {
	h := canonicalHost(host)
	if h == "" {
		return
	}
	f.mu.Lock()
	f.hosts[h] = struct{}{}
	f.mu.Unlock()
}

// Remove deletes a host from the in-memory set. Not persisted.
func (f *Filter) Remove(host string) {
	h := canonicalHost(host)
	f.mu.Lock()
	delete(f.hosts, h)
	f.mu.Unlock()
}

// Hosts returns the allowed hosts in sorted order.
func (f *Filter) Hosts() []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.hosts))
	for h := range f.hosts {
		out = append(out, h)
	}
	f.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of allowed hosts.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.hosts)
}

// MatchesSubdomains reports whether subdomain matching is enabled.
func (f *Filter) MatchesSubdomains() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.matchSubdomains
}

func canonicalHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(h, "www.")
}
