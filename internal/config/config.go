package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Reddit  RedditConfig
	Tracker TrackerConfig
	Storage StorageConfig
	Log     LogConfig
	Status  StatusConfig

	// Path is the file the configuration was read from.
	Path string
}

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Username     string
	Password     string
	SubName      string
}

type TrackerConfig struct {
	MaxDays                 int
	MaxPosts                int
	SleepMinutes            int
	IgnoreMethods           []string
	ExcludedFlairs          []string
	CooldownSeconds         int
	RateLimitBackoffSeconds int
}

// Interval is the pause between reconciliation cycles.
func (t TrackerConfig) Interval() time.Duration {
	return time.Duration(t.SleepMinutes) * time.Minute
}

// Cooldown is the pause after each removal notification.
func (t TrackerConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownSeconds) * time.Second
}

// RateLimitBackoff is the pause after a rate-limit response.
func (t TrackerConfig) RateLimitBackoff() time.Duration {
	return time.Duration(t.RateLimitBackoffSeconds) * time.Second
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// SlogLevel maps Level to a slog level; unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type StatusConfig struct {
	// Port of the local status endpoint. Zero disables it.
	Port int
}

func defaults() Config {
	return Config{
		Tracker: TrackerConfig{
			MaxDays:                 180,
			MaxPosts:                180,
			SleepMinutes:            5,
			IgnoreMethods:           []string{"Removed by mod"},
			ExcludedFlairs:          []string{"Solved", "Abandoned"},
			CooldownSeconds:         5,
			RateLimitBackoffSeconds: 60,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/sleuth/config.json.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "sleuth", "config.json")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "sleuth-data"
		}
	}
	return filepath.Join(dir, "sleuth")
}

// Load reads configuration from the JSON file at path (DefaultPath when
// empty) and applies SLEUTH_* environment overrides. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	b, err := openFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := loadWith(b)
	if err != nil {
		return Config{}, err
	}
	cfg.Path = path
	return cfg, nil
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Validate reports every setting that prevents the bot from running.
func (c Config) Validate() error {
	var errs []error
	required := []struct{ key, val string }{
		{"reddit.client_id", c.Reddit.ClientID},
		{"reddit.client_secret", c.Reddit.ClientSecret},
		{"reddit.user_agent", c.Reddit.UserAgent},
		{"reddit.username", c.Reddit.Username},
		{"reddit.password", c.Reddit.Password},
		{"reddit.sub_name", c.Reddit.SubName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			errs = append(errs, fmt.Errorf("missing required config: %s (set it in %s or via %s)", r.key, c.Path, envFor(r.key)))
		}
	}
	positive := []struct {
		key string
		val int
	}{
		{"tracker.max_days", c.Tracker.MaxDays},
		{"tracker.max_posts", c.Tracker.MaxPosts},
		{"tracker.sleep_minutes", c.Tracker.SleepMinutes},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.key, p.val))
		}
	}
	if c.Tracker.CooldownSeconds < 0 || c.Tracker.RateLimitBackoffSeconds < 0 {
		errs = append(errs, errors.New("tracker cooldown and backoff must not be negative"))
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		errs = append(errs, fmt.Errorf("status.port out of range: %d", c.Status.Port))
	}
	return errors.Join(errs...)
}

func envFor(key string) string {
	for _, s := range specs {
		if s.key == key {
			return s.env
		}
	}
	return ""
}
