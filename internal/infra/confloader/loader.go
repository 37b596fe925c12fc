package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment prefix of gedis-server settings.
const DefaultEnvPrefix = "GEDIS_"

// EnvSeparator separates config sections in environment variable names.
// A single underscore stays part of the key name, so
// GEDIS_SERVER__REDIS__CALL_TIMEOUT sets server.redis.call_timeout.
const EnvSeparator = "__"

// Loader layers configuration sources over the values already present in
// the target struct. Later layers win: file, environment, overrides.
type Loader struct {
	envPrefix    string
	file         string
	fileOptional bool
	overrides    map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile reads the YAML file at path. The file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.file = path
		l.fileOptional = false
	}
}

// WithOptionalConfigFile reads the YAML file at path if it exists.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) {
		l.file = path
		l.fileOptional = true
	}
}

// WithOverrides applies values keyed by dotted paths ("server.redis.addr")
// after every other source. Command-line flags end up here.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and unmarshals the merged result into target,
// a pointer to a struct with koanf tags. Keys no source sets keep the
// value target already holds.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.file != "" {
		if err := l.loadFile(k); err != nil {
			return err
		}
	}

	envProvider := env.Provider(l.envPrefix, ".", func(s string) string {
		return EnvKey(l.envPrefix, s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (l *Loader) loadFile(k *koanf.Koanf) error {
	if l.fileOptional {
		if _, err := os.Stat(l.file); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := k.Load(file.Provider(l.file), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", l.file, err)
	}
	return nil
}

// EnvKey converts an environment variable name into a config key.
func EnvKey(prefix, name string) string {
	name = strings.TrimPrefix(name, prefix)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, EnvSeparator, ".")
}
