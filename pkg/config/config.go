// Package config loads the configsplice settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grokify/omnistorage"
	"github.com/grokify/omnistorage/backend/file"
	"gopkg.in/yaml.v3"

	"github.com/grokify/configsplice/pkg/rows"
)

const (
	defaultMaxDepth   = 64
	defaultLineBuffer = 8192
	defaultDebounceMs = 300
)

// Source defines a named row producer. Exactly one of Rows, Command and File is set.
type Source struct {
	Rows []string `yaml:"rows"`

	// Command is run through sh -c; each output line is a row.
	Command   string `yaml:"command"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// File is a path below storage.root.
	File string `yaml:"file"`
}

type Config struct {
	Storage struct {
		// Root is the directory SpliceFile paths and file sources are read from.
		Root string `yaml:"root"`
	} `yaml:"storage"`

	Parse struct {
		MaxDepth   int `yaml:"max_depth"`
		LineBuffer int `yaml:"line_buffer"`
	} `yaml:"parse"`

	Output struct {
		// Annotate prefixes expanded lines with their origin.
		Annotate bool `yaml:"annotate"`
	} `yaml:"output"`

	Watch struct {
		DebounceMs int `yaml:"debounce_ms"`
	} `yaml:"watch"`

	Sources map[string]Source `yaml:"sources"`
}

// Default returns the configuration used when no file is given.
// Environment overrides are applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg
}

func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Parse.MaxDepth <= 0 {
		cfg.Parse.MaxDepth = defaultMaxDepth
	}
	if cfg.Parse.LineBuffer == 0 {
		cfg.Parse.LineBuffer = defaultLineBuffer
	}
	if cfg.Watch.DebounceMs <= 0 {
		cfg.Watch.DebounceMs = defaultDebounceMs
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]Source{}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CONFIGSPLICE_STORAGE_ROOT")); v != "" {
		cfg.Storage.Root = v
	}
	if n, ok := envInt("CONFIGSPLICE_MAX_DEPTH"); ok && n > 0 {
		cfg.Parse.MaxDepth = n
	}
	if n, ok := envInt("CONFIGSPLICE_LINE_BUFFER"); ok {
		cfg.Parse.LineBuffer = n
	}
	if n, ok := envInt("CONFIGSPLICE_WATCH_DEBOUNCE_MS"); ok {
		cfg.Watch.DebounceMs = n
	}
	cfg.Output.Annotate = envBool("CONFIGSPLICE_ANNOTATE", cfg.Output.Annotate)
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func validate(cfg *Config) error {
	if cfg.Parse.LineBuffer < 2 {
		return errors.New("parse.line_buffer must be >= 2")
	}
	if cfg.Watch.DebounceMs <= 0 {
		return errors.New("watch.debounce_ms must be > 0")
	}

	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := map[string]bool{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return errors.New("sources: name must not be empty")
		}
		if seen[key] {
			return fmt.Errorf("sources.%s: duplicate name (names are case-insensitive)", name)
		}
		seen[key] = true

		src := cfg.Sources[name]
		set := 0
		if src.Rows != nil {
			set++
		}
		if strings.TrimSpace(src.Command) != "" {
			set++
		}
		if strings.TrimSpace(src.File) != "" {
			set++
		}
		if set != 1 {
			return fmt.Errorf("sources.%s: exactly one of rows, command and file must be set", name)
		}
		if src.TimeoutMs < 0 {
			return fmt.Errorf("sources.%s: timeout_ms must be >= 0", name)
		}
		if strings.TrimSpace(src.File) != "" && strings.TrimSpace(cfg.Storage.Root) == "" {
			return fmt.Errorf("sources.%s: file sources require storage.root", name)
		}
	}
	return nil
}

// DebounceInterval returns the watch debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// OpenStorage opens the file backend rooted at storage.root.
// It returns nil when no root is configured.
func (c *Config) OpenStorage() omnistorage.Backend {
	root := strings.TrimSpace(c.Storage.Root)
	if root == "" {
		return nil
	}
	return file.New(file.Config{Root: root})
}

// Registry builds the named producers. File sources read from backend.
func (c *Config) Registry(backend omnistorage.Backend) (*rows.Registry, error) {
	r := rows.NewRegistry()
	for name, src := range c.Sources {
		p, err := src.producer(backend)
		if err != nil {
			return nil, fmt.Errorf("sources.%s: %w", name, err)
		}
		if err := r.Register(name, p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s Source) producer(backend omnistorage.Backend) (rows.Producer, error) {
	switch {
	case strings.TrimSpace(s.Command) != "":
		cmd := rows.Shell(s.Command)
		cmd.Timeout = time.Duration(s.TimeoutMs) * time.Millisecond
		return cmd, nil
	case strings.TrimSpace(s.File) != "":
		if backend == nil {
			return nil, errors.New("storage is not configured")
		}
		return &rows.Storage{Backend: backend, Path: s.File}, nil
	default:
		return rows.Static(s.Rows), nil
	}
}
