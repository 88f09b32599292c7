// Package config defines the immutable engine configuration.
//
// All options are resolved once at startup (environment variables with the
// DAYFOLD_ prefix, or ~/.config/dayfold/config.yaml) and passed into every
// component constructor. No component reads the process environment directly.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// DateStyle selects the date rendering used in daily branch names.
type DateStyle string

const (
	DateStyleDash    DateStyle = "dash"    // 2006-01-02
	DateStyleCompact DateStyle = "compact" // 20060102
)

// ClearMessageWhen selects when the commit message file is blanked.
type ClearMessageWhen string

const (
	ClearOnPush   ClearMessageWhen = "push"
	ClearOnCommit ClearMessageWhen = "commit"
	ClearNever    ClearMessageWhen = "never"
)

// DefaultHeaderPattern matches a conventional-commit subject line:
// type(optional scope)!: description.
const DefaultHeaderPattern = `^(feat|fix|docs|style|refactor|perf|test|build|ci|chore|revert|infra)(\([^)]+\))?!?: .+`

// Config holds every engine option. Construct with FromViper or use
// Default() in tests; treat as read-only after construction.
type Config struct {
	// Branch / time
	StaticBranch string    `mapstructure:"static_branch"`
	DailyPrefix  string    `mapstructure:"daily_prefix"`
	Timezone     string    `mapstructure:"timezone"`
	DateStyle    DateStyle `mapstructure:"date_style"`
	Trunk        string    `mapstructure:"trunk"`

	// Push
	AutoPush bool `mapstructure:"auto_push"`
	// ForceUpstreamFallback allows the last push-retry stage to force-set
	// the upstream even when histories have diverged. Off by default: a
	// forced push can discard commits from a concurrent agent.
	ForceUpstreamFallback bool `mapstructure:"force_upstream_fallback"`

	// Message gating
	RequireMessage            bool   `mapstructure:"require_message"`
	RequireMessageAfterChange bool   `mapstructure:"require_message_after_change"`
	MinHeaderBytes            int    `mapstructure:"min_header_bytes"`
	HeaderPattern             string `mapstructure:"header_pattern"`
	MessageFile               string `mapstructure:"message_file"`

	// Triggering
	TriggerOnMessage bool          `mapstructure:"trigger_on_message"`
	MessageDebounce  time.Duration `mapstructure:"message_debounce"`
	QuietPeriod      time.Duration `mapstructure:"quiet_period"`

	// Lifecycle
	ClearMessage   ClearMessageWhen `mapstructure:"clear_message"`
	AutoConfirm    bool             `mapstructure:"auto_confirm"`
	RolloverPrompt bool             `mapstructure:"rollover_prompt"`
	ForceRollover  bool             `mapstructure:"force_rollover"`

	// Versioning
	VersionPrefix string `mapstructure:"version_prefix"`
	StartMinor    int    `mapstructure:"start_minor"`
	MinorStep     int    `mapstructure:"minor_step"`
	BaseRef       string `mapstructure:"base_ref"`

	// Watching
	IgnoreDirs []string `mapstructure:"ignore_dirs"`

	headerRe *regexp.Regexp
	location *time.Location
}

// Default returns a Config with the same defaults viper seeds, already
// validated. Intended for tests and embedding tools.
func Default() *Config {
	cfg := &Config{
		DailyPrefix:      "daily/",
		Timezone:         "Local",
		DateStyle:        DateStyleDash,
		Trunk:            "main",
		AutoPush:         true,
		RequireMessage:   true,
		MinHeaderBytes:   10,
		HeaderPattern:    DefaultHeaderPattern,
		TriggerOnMessage: true,
		MessageDebounce:  3 * time.Second,
		ClearMessage:     ClearOnPush,
		AutoConfirm:      true,
		VersionPrefix:    "v0.",
		StartMinor:       1,
		MinorStep:        1,
		BaseRef:          "origin/main",
		IgnoreDirs:       []string{".git", "node_modules", "vendor", ".idea"},
	}
	if err := cfg.Validate(); err != nil {
		panic(err) // defaults are always valid
	}
	return cfg
}

// Validate checks enum values, compiles the header pattern, and resolves
// the timezone. Must be called once before the config is shared.
func (c *Config) Validate() error {
	switch c.DateStyle {
	case DateStyleDash, DateStyleCompact:
	default:
		return fmt.Errorf("invalid date_style %q (want dash or compact)", c.DateStyle)
	}

	switch c.ClearMessage {
	case ClearOnPush, ClearOnCommit, ClearNever:
	default:
		return fmt.Errorf("invalid clear_message %q (want push, commit, or never)", c.ClearMessage)
	}

	if c.MinorStep < 1 {
		return fmt.Errorf("minor_step must be >= 1, got %d", c.MinorStep)
	}
	if c.StartMinor < 0 {
		return fmt.Errorf("start_minor must be >= 0, got %d", c.StartMinor)
	}
	if c.MinHeaderBytes < 1 {
		return fmt.Errorf("min_header_bytes must be >= 1, got %d", c.MinHeaderBytes)
	}

	re, err := regexp.Compile(c.HeaderPattern)
	if err != nil {
		return fmt.Errorf("invalid header_pattern: %w", err)
	}
	c.headerRe = re

	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	return nil
}

// HeaderRegexp returns the compiled header pattern. Validate must have
// succeeded first.
func (c *Config) HeaderRegexp() *regexp.Regexp { return c.headerRe }

// Location returns the resolved timezone. Validate must have succeeded first.
func (c *Config) Location() *time.Location { return c.location }

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
