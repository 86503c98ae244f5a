package domains

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilterAllows(t *testing.T) {
	tests := []struct {
		name            string
		domains         []string
		matchSubdomains bool
		host            string
		want            bool
	}{
		{
			name:    "exact match",
			domains: []string{"nytimes.com"},
			host:    "nytimes.com",
			want:    true,
		},
		{
			name:    "www stripped from query",
			domains: []string{"nytimes.com"},
			host:    "www.nytimes.com",
			want:    true,
		},
		{
			name:    "www stripped from config entry",
			domains: []string{"www.nytimes.com"},
			host:    "nytimes.com",
			want:    true,
		},
		{
			name:    "case insensitive",
			domains: []string{"nytimes.com"},
			host:    "NYTimes.COM",
			want:    true,
		},
		{
			name:            "subdomain allowed when enabled",
			domains:         []string{"nytimes.com"},
			matchSubdomains: true,
			host:            "cooking.nytimes.com",
			want:            true,
		},
		{
			name:            "deep subdomain allowed when enabled",
			domains:         []string{"nytimes.com"},
			matchSubdomains: true,
			host:            "a.b.nytimes.com",
			want:            true,
		},
		{
			name:            "subdomain rejected when disabled",
			domains:         []string{"nytimes.com"},
			matchSubdomains: false,
			host:            "cooking.nytimes.com",
			want:            false,
		},
		{
			name:            "substring lookalike rejected",
			domains:         []string{"nytimes.com"},
			matchSubdomains: true,
			host:            "fakenytimes.com",
			want:            false,
		},
		{
			name:            "suffix without label boundary rejected",
			domains:         []string{"nytimes.com"},
			matchSubdomains: true,
			host:            "notnytimes.com",
			want:            false,
		},
		{
			name:    "unlisted host rejected",
			domains: []string{"nytimes.com"},
			host:    "washingtonpost.com",
			want:    false,
		},
		{
			name:    "empty host rejected",
			domains: []string{"nytimes.com"},
			host:    "",
			want:    false,
		},
		{
			name:            "listed domain is not matched by its parent",
			domains:         []string{"cooking.nytimes.com"},
			matchSubdomains: true,
			host:            "nytimes.com",
			want:            false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(Config{Domains: tt.domains, MatchSubdomains: tt.matchSubdomains})
			if got := f.Allows(tt.host); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestFilterAddRemove(t *testing.T) {
	f := New(Config{Domains: []string{"nytimes.com"}})

	f.Add("Washington-Post.com")
	if !f.Allows("washington-post.com") {
		t.Error("Allows after Add = false, want true")
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}

	f.Remove("www.nytimes.com")
	if f.Allows("nytimes.com") {
		t.Error("Allows after Remove = true, want false")
	}

	hosts := f.Hosts()
	if len(hosts) != 1 || hosts[0] != "washington-post.com" {
		t.Errorf("Hosts() = %v, want [washington-post.com]", hosts)
	}
}

func TestLoadMissingFileFailsSoft(t *testing.T) {
	f := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
	if f.Allows("nytimes.com") {
		t.Error("empty filter allowed a host")
	}
}

func TestLoadMalformedFileFailsSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := Load(path)
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}

func TestReloadSwapsSetAndKeepsOldOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.json")
	if err := os.WriteFile(path, []byte(`{"domains":["nytimes.com"],"match_subdomains":true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	f := Load(path)
	if !f.Allows("cooking.nytimes.com") {
		t.Fatal("Allows(cooking.nytimes.com) = false after initial load")
	}

	if err := os.WriteFile(path, []byte(`{"domains":["bbc.co.uk"],"match_subdomains":false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.Reload(); err != nil {
		t.Fatalf("Reload() returned error: %v", err)
	}
	if f.Allows("nytimes.com") {
		t.Error("Allows(nytimes.com) = true after reload removed it")
	}
	if !f.Allows("bbc.co.uk") {
		t.Error("Allows(bbc.co.uk) = false after reload added it")
	}

	// A broken rewrite must keep the working set.
	if err := os.WriteFile(path, []byte("oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.Reload(); err == nil {
		t.Error("Reload() with malformed file returned nil error")
	}
	if !f.Allows("bbc.co.uk") {
		t.Error("Allows(bbc.co.uk) = false, want previous set kept after failed reload")
	}
}
