package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "reddit.client_id", typ: kString, env: "SLEUTH_REDDIT_CLIENT_ID",
		apply:   func(cfg *Config, v any) { cfg.Reddit.ClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.ClientID },
	},
	{
		key: "reddit.client_secret", typ: kString, env: "SLEUTH_REDDIT_CLIENT_SECRET",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Reddit.ClientSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.ClientSecret },
	},
	{
		key: "reddit.user_agent", typ: kString, env: "SLEUTH_REDDIT_USER_AGENT",
		apply:   func(cfg *Config, v any) { cfg.Reddit.UserAgent = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.UserAgent },
	},
	{
		key: "reddit.username", typ: kString, env: "SLEUTH_REDDIT_USERNAME",
		apply:   func(cfg *Config, v any) { cfg.Reddit.Username = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.Username },
	},
	{
		key: "reddit.password", typ: kString, env: "SLEUTH_REDDIT_PASSWORD",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Reddit.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.Password },
	},
	{
		key: "reddit.sub_name", typ: kString, env: "SLEUTH_REDDIT_SUB_NAME",
		apply:   func(cfg *Config, v any) { cfg.Reddit.SubName = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.SubName },
	},
	{
		key: "tracker.max_days", typ: kInt, env: "SLEUTH_TRACKER_MAX_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Tracker.MaxDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Tracker.MaxDays },
	},
	{
		key: "tracker.max_posts", typ: kInt, env: "SLEUTH_TRACKER_MAX_POSTS",
		apply:   func(cfg *Config, v any) { cfg.Tracker.MaxPosts = v.(int) },
		extract: func(cfg Config) any { return cfg.Tracker.MaxPosts },
	},
	{
		key: "tracker.sleep_minutes", typ: kInt, env: "SLEUTH_TRACKER_SLEEP_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Tracker.SleepMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Tracker.SleepMinutes },
	},
	{
		key: "tracker.ignore_methods", typ: kList, env: "SLEUTH_TRACKER_IGNORE_METHODS",
		apply:   func(cfg *Config, v any) { cfg.Tracker.IgnoreMethods = v.([]string) },
		extract: func(cfg Config) any { return cfg.Tracker.IgnoreMethods },
	},
	{
		key: "tracker.excluded_flairs", typ: kList, env: "SLEUTH_TRACKER_EXCLUDED_FLAIRS",
		apply:   func(cfg *Config, v any) { cfg.Tracker.ExcludedFlairs = v.([]string) },
		extract: func(cfg Config) any { return cfg.Tracker.ExcludedFlairs },
	},
	{
		key: "tracker.cooldown_seconds", typ: kInt, env: "SLEUTH_TRACKER_COOLDOWN_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Tracker.CooldownSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Tracker.CooldownSeconds },
	},
	{
		key: "tracker.rate_limit_backoff_seconds", typ: kInt, env: "SLEUTH_TRACKER_RATE_LIMIT_BACKOFF_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Tracker.RateLimitBackoffSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Tracker.RateLimitBackoffSeconds },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SLEUTH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SLEUTH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "status.port", typ: kInt, env: "SLEUTH_STATUS_PORT",
		apply:   func(cfg *Config, v any) { cfg.Status.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Status.Port },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kList:
			v, ok, err := b.GetStringList(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kList:
			s.apply(cfg, splitList(raw))
		}
	}
}

// splitList parses a comma-separated value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func formatValue(v any) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprintf("%v", v)
}
