package feeds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranking.json")
	if err := os.WriteFile(path, []byte(`{"decay_rate": 0.1, "results_limit": 10}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DecayRate != 0.1 {
		t.Errorf("DecayRate = %v, want 0.1", cfg.DecayRate)
	}
	if cfg.ResultsLimit != 10 {
		t.Errorf("ResultsLimit = %d, want 10", cfg.ResultsLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxAgeHours != 72 {
		t.Errorf("MaxAgeHours = %d, want default 72", cfg.MaxAgeHours)
	}
	if cfg.MaxPostsPerURL != 2 {
		t.Errorf("MaxPostsPerURL = %d, want default 2", cfg.MaxPostsPerURL)
	}
}

func TestNewEngineFromFileFailsSoft(t *testing.T) {
	e := NewEngineFromFile(&stubSource{}, filepath.Join(t.TempDir(), "missing.json"))
	if got := e.Config(); got != DefaultConfig() {
		t.Errorf("Config() = %+v, want defaults", got)
	}
}

func TestEngineReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranking.json")
	if err := os.WriteFile(path, []byte(`{"decay_rate": 0.2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEngineFromFile(&stubSource{}, path)
	if got := e.Config().DecayRate; got != 0.2 {
		t.Fatalf("DecayRate after load = %v, want 0.2", got)
	}

	if err := os.WriteFile(path, []byte(`{"decay_rate": 0.3}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if got := e.Config().DecayRate; got != 0.3 {
		t.Errorf("DecayRate after reload = %v, want 0.3", got)
	}

	// A broken rewrite keeps the running config.
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(); err == nil {
		t.Error("Reload with malformed file = nil error, want error")
	}
	if got := e.Config().DecayRate; got != 0.3 {
		t.Errorf("DecayRate after failed reload = %v, want 0.3 kept", got)
	}
}
