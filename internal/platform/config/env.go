package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envSource resolves keys with precedence explicit map > process environment > .env file.
type envSource struct {
	explicit map[string]string
	system   bool
	dotenv   map[string]string
}

func newEnvSource(options loaderOptions) (envSource, error) {
	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return envSource{}, err
	}
	return envSource{explicit: options.envMap, system: options.useSystemEnv, dotenv: dotenv}, nil
}

func (s envSource) lookup(key string) (string, bool) {
	if value, ok := s.explicit[key]; ok {
		return value, true
	}
	if s.system {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
	}
	value, ok := s.dotenv[key]
	return value, ok
}

// values flattens the source into a single map using the same precedence as lookup.
func (s envSource) values() map[string]string {
	out := make(map[string]string, len(s.dotenv)+len(s.explicit))
	for k, v := range s.dotenv {
		out[k] = v
	}
	if s.system {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			out[strings.TrimSpace(key)] = value
		}
	}
	for k, v := range s.explicit {
		out[k] = v
	}
	return out
}

func (s envSource) str(key, fallback string) string {
	if value, ok := s.lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (s envSource) duration(key string, fallback time.Duration) time.Duration {
	if value, ok := s.lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func (s envSource) integer(key string, fallback int) int {
	if value, ok := s.lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

// EnvironmentValues returns the effective environment after applying Load's precedence rules so
// callers can initialise dependencies (such as the secret fetcher) before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	env, err := newEnvSource(options)
	if err != nil {
		return nil, err
	}
	return env.values(), nil
}

func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}
