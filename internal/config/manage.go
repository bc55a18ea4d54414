package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secret values are masked.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		value := formatValue(s.extract(cfg))
		if s.secret {
			value = mask(value)
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  value,
		})
	}
	return result
}

func mask(v string) string {
	if v == "" {
		return "(unset)"
	}
	return "********"
}

// SetKey writes a config key to the file at path (DefaultPath when empty).
func SetKey(path, key, value string) error {
	if path == "" {
		path = DefaultPath()
	}
	b, err := openFileBackend(path)
	if err != nil {
		return err
	}

	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; edit %s or use environment variable %s", key, path, s.env)
		}
		switch s.typ {
		case kString:
			return b.SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return b.SetInt(key, i)
		case kList:
			return b.SetStringList(key, splitList(value))
		}
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// Reset overwrites the file at path with the default template.
func Reset(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	b := &fileBackend{path: path, data: make(map[string]any)}
	cfg := defaults()
	for _, s := range specs {
		b.data[s.key] = s.extract(cfg)
	}
	if err := b.save(); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

// EnsureFile writes the default template when no file exists at path. It
// reports whether a template was written.
func EnsureFile(path string) (bool, error) {
	if path == "" {
		path = DefaultPath()
	}
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking config file: %w", err)
	}
	if err := Reset(path); err != nil {
		return false, err
	}
	return true, nil
}
