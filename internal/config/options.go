package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Options are the tunables from keihi.yml. All fields have working defaults;
// the file may be absent entirely.
type Options struct {
	TempDir                string `yaml:"temp_dir"`
	SessionTTLMinutes      int    `yaml:"session_ttl_minutes"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes"`
	TempFileMaxAgeMinutes  int    `yaml:"temp_file_max_age_minutes"`
	FolderCacheMaxAgeHours int    `yaml:"folder_cache_max_age_hours"`
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() *Options {
	return &Options{
		TempDir:                filepath.Join(os.TempDir(), "keihi"),
		SessionTTLMinutes:      5,
		CleanupIntervalMinutes: 10,
		TempFileMaxAgeMinutes:  60,
		FolderCacheMaxAgeHours: 24,
	}
}

// LoadOptions reads and validates the options file at path. A missing file
// yields the defaults.
func LoadOptions(path string) (*Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if opts.TempDir == "" {
		opts.TempDir = DefaultOptions().TempDir
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"session_ttl_minutes", opts.SessionTTLMinutes},
		{"cleanup_interval_minutes", opts.CleanupIntervalMinutes},
		{"temp_file_max_age_minutes", opts.TempFileMaxAgeMinutes},
		{"folder_cache_max_age_hours", opts.FolderCacheMaxAgeHours},
	} {
		if f.value <= 0 {
			return nil, fmt.Errorf("%s: %s must be positive, got %d", path, f.name, f.value)
		}
	}

	return opts, nil
}

// SessionTTL returns the session lifetime as a duration.
func (o *Options) SessionTTL() time.Duration {
	return time.Duration(o.SessionTTLMinutes) * time.Minute
}

// CleanupInterval returns the housekeeping tick interval.
func (o *Options) CleanupInterval() time.Duration {
	return time.Duration(o.CleanupIntervalMinutes) * time.Minute
}

// TempFileMaxAge returns the age after which temp files are removed.
func (o *Options) TempFileMaxAge() time.Duration {
	return time.Duration(o.TempFileMaxAgeMinutes) * time.Minute
}

// FolderCacheMaxAge returns the age after which cached folder IDs are pruned.
func (o *Options) FolderCacheMaxAge() time.Duration {
	return time.Duration(o.FolderCacheMaxAgeHours) * time.Hour
}

// CachePath returns the path of the local lookaside database.
func (o *Options) CachePath() string {
	return filepath.Join(o.TempDir, "cache.db")
}
