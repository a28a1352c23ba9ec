// Package config loads the planner's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/schedule"
)

const (
	AppName     = "gcal-planner"
	fileName    = "config.yaml"
	defaultZone = "America/New_York"
)

// WindowConfig is a HH:MM time-of-day range.
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// BlockerConfig is a recurring period kept free of flexible events.
type BlockerConfig struct {
	Name     string `yaml:"name"`
	RRule    string `yaml:"rrule"`
	Start    string `yaml:"start"`
	Duration string `yaml:"duration"`
}

type SchedulingConfig struct {
	HorizonDays        int                     `yaml:"horizon_days"`
	GranularityMinutes int                     `yaml:"granularity_minutes"`
	BufferMinutes      int                     `yaml:"buffer_minutes"`
	Preferred          WindowConfig            `yaml:"preferred"`
	WorkingHours       map[string]WindowConfig `yaml:"working_hours"`
	Blocked            []BlockerConfig         `yaml:"blocked"`
}

type SyncConfig struct {
	LookbackDays              int `yaml:"lookback_days"`
	LookaheadDays             int `yaml:"lookahead_days"`
	DuplicateToleranceSeconds int `yaml:"duplicate_tolerance_seconds"`
}

type OracleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

type DaemonConfig struct {
	Cron string `yaml:"cron"`
	Sync bool   `yaml:"sync"`
}

// RangeConfig sets how many days the week and month views cover.
type RangeConfig struct {
	WeekDays  int `yaml:"week_days"`
	MonthDays int `yaml:"month_days"`
}

// Config is the top-level configuration.
type Config struct {
	CalendarID string           `yaml:"calendar_id"`
	Timezone   string           `yaml:"timezone"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Sync       SyncConfig       `yaml:"sync"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Ranges     RangeConfig      `yaml:"ranges"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills missing values with defaults.
func (c *Config) Normalize() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.Timezone == "" {
		c.Timezone = defaultZone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		c.LogFormat = "console"
	}

	s := &c.Scheduling
	if s.HorizonDays <= 0 {
		s.HorizonDays = 30
	}
	if s.GranularityMinutes <= 0 {
		s.GranularityMinutes = 15
	}
	if s.BufferMinutes <= 0 {
		s.BufferMinutes = 15
	}
	if s.Preferred.Start == "" || s.Preferred.End == "" {
		s.Preferred = WindowConfig{Start: "10:00", End: "19:00"}
	}
	if s.WorkingHours == nil {
		s.WorkingHours = map[string]WindowConfig{}
		for p, w := range schedule.DefaultWorkingHours() {
			s.WorkingHours[string(p)] = WindowConfig{Start: w.Start.String(), End: w.End.String()}
		}
	}
	if s.Blocked == nil {
		s.Blocked = []BlockerConfig{}
	}

	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = 1
	}
	if c.Sync.LookaheadDays <= 0 {
		c.Sync.LookaheadDays = 30
	}
	if c.Sync.DuplicateToleranceSeconds <= 0 {
		c.Sync.DuplicateToleranceSeconds = 60
	}

	if c.Oracle.Model == "" {
		c.Oracle.Model = "gpt-5-mini"
	}
	if c.Oracle.APIKeyEnv == "" {
		c.Oracle.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Daemon.Cron == "" {
		c.Daemon.Cron = "*/30 * * * *"
	}
	if c.Ranges.WeekDays <= 0 {
		c.Ranges.WeekDays = 7
	}
	if c.Ranges.MonthDays <= 0 {
		c.Ranges.MonthDays = 30
	}
}

// Location loads the configured IANA zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScheduleOptions converts the scheduling section. Saved user time ranges,
// when non-nil, override the configured working hours per purpose.
func (c *Config) ScheduleOptions(loc *time.Location, saved schedule.TimeRanges) (schedule.Options, error) {
	s := c.Scheduling
	opts := schedule.Options{
		WorkingHours: schedule.TimeRanges{},
		Buffer:       time.Duration(s.BufferMinutes) * time.Minute,
		Granularity:  time.Duration(s.GranularityMinutes) * time.Minute,
		HorizonDays:  s.HorizonDays,
		Location:     loc,
	}

	pref, err := schedule.NewWindow(s.Preferred.Start, s.Preferred.End)
	if err != nil {
		return schedule.Options{}, fmt.Errorf("scheduling.preferred: %w", err)
	}
	opts.Preferred = pref

	for name, wc := range s.WorkingHours {
		w, err := schedule.NewWindow(wc.Start, wc.End)
		if err != nil {
			return schedule.Options{}, fmt.Errorf("scheduling.working_hours.%s: %w", name, err)
		}
		opts.WorkingHours[event.ParsePurpose(name)] = w
	}
	opts.WorkingHours = opts.WorkingHours.Merge(saved)

	for _, bc := range s.Blocked {
		b, err := bc.Blocker()
		if err != nil {
			return schedule.Options{}, err
		}
		opts.Blockers = append(opts.Blockers, b)
	}
	return opts, nil
}

// Blocker parses and validates a blocker entry.
func (bc BlockerConfig) Blocker() (schedule.Blocker, error) {
	start, err := event.ParseClock(bc.Start)
	if err != nil {
		return schedule.Blocker{}, fmt.Errorf("blocker %q: %w", bc.Name, err)
	}
	d, err := event.ParseDuration(bc.Duration)
	if err != nil {
		return schedule.Blocker{}, fmt.Errorf("blocker %q: %w", bc.Name, err)
	}
	b := schedule.Blocker{Name: bc.Name, Rule: bc.RRule, Start: start, Duration: d}
	if err := b.Validate(); err != nil {
		return schedule.Blocker{}, err
	}
	return b, nil
}

// Validate checks the values Normalize cannot repair.
func (c *Config) Validate() error {
	loc, err := c.Location()
	if err != nil {
		return err
	}
	_, err = c.ScheduleOptions(loc, nil)
	return err
}

// ConfigDir returns $XDG_CONFIG_HOME/gcal-planner.
func ConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName), nil
}

// ResolveDataDir returns the configured data directory or
// $XDG_DATA_HOME/gcal-planner.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppName), nil
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// LoadEnv reads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path. On first run a default file is written
// with 0600 permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gcal-planner-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
