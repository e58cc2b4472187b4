// Package config loads the randomizer's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "randomizer.yaml"

// Config holds all randomizer configuration.
type Config struct {
	// Debug shortens the session and writes output to the debug directory.
	Debug bool `yaml:"debug"`

	Experiment ExperimentConfig `yaml:"experiment"`
	Timing     TimingConfig     `yaml:"timing"`
	Output     OutputConfig     `yaml:"output"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExperimentConfig describes the session itself.
type ExperimentConfig struct {
	Name        string `yaml:"name"`
	StimuliFile string `yaml:"stimuli_file"`
	Rounds      int    `yaml:"rounds"`
	DebugRounds int    `yaml:"debug_rounds"`
	Seed        int64  `yaml:"seed"` // 0 = random per session
}

// TimingConfig holds the driver's timed prompts as duration strings.
type TimingConfig struct {
	TrialConfirm string `yaml:"trial_confirm"` // window to revert a finished trial
	RoundConfirm string `yaml:"round_confirm"` // window to revert starting a round
	Notice       string `yaml:"notice"`        // how long confirmation notices stay up
	Concluding   string `yaml:"concluding"`    // concluding screen before exit
}

// OutputConfig configures where trial records go.
type OutputConfig struct {
	DataDir      string   `yaml:"data_dir"`
	DebugDir     string   `yaml:"debug_dir"`
	Formats      []string `yaml:"formats"` // csv, sqlite
	DatabasePath string   `yaml:"database_path"`
	KeepAborted  bool     `yaml:"keep_aborted"`
}

// ScoringConfig lists the people who will score the session; each trial is
// written once per scorer.
type ScoringConfig struct {
	Scorers []string `yaml:"scorers"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// Output formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// ValidFormats lists all supported output formats.
var ValidFormats = []string{FormatCSV, FormatSQLite}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			Name:        "Perceptual Balance Task",
			StimuliFile: "behavioral_stimuli.csv",
			Rounds:      6,
			DebugRounds: 1,
		},
		Timing: TimingConfig{
			TrialConfirm: "3s",
			RoundConfirm: "3s",
			Notice:       "3s",
			Concluding:   "3s",
		},
		Output: OutputConfig{
			DataDir:      "data",
			DebugDir:     "tests",
			Formats:      []string{FormatCSV, FormatSQLite},
			DatabasePath: "data/randomizer.db",
			KeepAborted:  true,
		},
		Scoring: ScoringConfig{
			Scorers: []string{"Scorer #1", "Scorer #2", "Scorer #3"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if path := os.Getenv("RANDOMIZER_STIMULI"); path != "" {
		c.Experiment.StimuliFile = path
	}
	if v := os.Getenv("RANDOMIZER_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RANDOMIZER_ROUNDS %q: %w", v, err)
		}
		c.Experiment.Rounds = n
	}
	if v := os.Getenv("RANDOMIZER_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid RANDOMIZER_SEED %q: %w", v, err)
		}
		c.Experiment.Seed = n
	}
	if v := os.Getenv("RANDOMIZER_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RANDOMIZER_DEBUG %q: %w", v, err)
		}
		c.Debug = b
	}
	if path := os.Getenv("RANDOMIZER_DB"); path != "" {
		c.Output.DatabasePath = path
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Experiment.StimuliFile == "" {
		return fmt.Errorf("stimuli file not configured")
	}
	if c.Experiment.Rounds <= 0 {
		return fmt.Errorf("rounds must be positive, got %d", c.Experiment.Rounds)
	}
	if c.Debug && c.Experiment.DebugRounds <= 0 {
		return fmt.Errorf("debug_rounds must be positive, got %d", c.Experiment.DebugRounds)
	}
	if len(c.Output.Formats) == 0 {
		return fmt.Errorf("at least one output format required (valid: %v)", ValidFormats)
	}
	for _, f := range c.Output.Formats {
		if !isValidFormat(f) {
			return fmt.Errorf("invalid output format: %s (valid: %v)", f, ValidFormats)
		}
	}
	return nil
}

func isValidFormat(f string) bool {
	for _, v := range ValidFormats {
		if f == v {
			return true
		}
	}
	return false
}

// HasFormat reports whether the given output format is enabled.
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Output.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// EffectiveRounds returns the number of rounds to run, honoring debug mode.
func (c *Config) EffectiveRounds() int {
	if c.Debug {
		return c.Experiment.DebugRounds
	}
	return c.Experiment.Rounds
}

// OutputDir returns the directory session files are written to.
func (c *Config) OutputDir() string {
	if c.Debug {
		return c.Output.DebugDir
	}
	return c.Output.DataDir
}

// DatabaseFile returns the SQLite store path. Debug sessions keep their own
// store next to their other output.
func (c *Config) DatabaseFile() string {
	if c.Debug {
		return filepath.Join(c.Output.DebugDir, filepath.Base(c.Output.DatabasePath))
	}
	return c.Output.DatabasePath
}

// GetTrialConfirm returns how long a finished trial can still be reverted.
func (c *Config) GetTrialConfirm() time.Duration {
	return parseDuration(c.Timing.TrialConfirm, 3*time.Second)
}

// GetRoundConfirm returns how long starting a round can still be reverted.
func (c *Config) GetRoundConfirm() time.Duration {
	return parseDuration(c.Timing.RoundConfirm, 3*time.Second)
}

// GetNotice returns how long confirmation notices are shown.
func (c *Config) GetNotice() time.Duration {
	return parseDuration(c.Timing.Notice, 3*time.Second)
}

// GetConcluding returns how long the concluding screen is shown.
func (c *Config) GetConcluding() time.Duration {
	return parseDuration(c.Timing.Concluding, 3*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
