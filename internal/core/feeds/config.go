package feeds

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the ranking options. MaxPostsPerURL set to zero disables the
// per-URL cap.
type Config struct {
	DecayRate      float64 `json:"decay_rate"`
	MaxAgeHours    int     `json:"max_age_hours"`
	MinShareCount  int     `json:"min_share_count"`
	MinRepostCount int     `json:"min_repost_count"`
	RepostWeight   float64 `json:"repost_weight"`
	ResultsLimit   int     `json:"results_limit"`
	MaxPostsPerURL int     `json:"max_posts_per_url"`
}

// DefaultConfig returns the documented ranking defaults.
func DefaultConfig() Config {
	return Config{
		DecayRate:      0.05,
		MaxAgeHours:    72,
		MinShareCount:  1,
		MinRepostCount: 0,
		RepostWeight:   1.0,
		ResultsLimit:   50,
		MaxPostsPerURL: 2,
	}
}

// LoadConfig reads the JSON options document at path. Fields absent from
// the document keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading ranking config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing ranking config: %w", err)
	}
	return cfg, nil
}
