// Package config manages bibsync configuration and the .bibsync directory.
// It handles loading, saving, and initializing the per-repository settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	Dir          = ".bibsync"
	ConfigFile   = "config"
	DatabaseFile = "state.db"

	DefaultRemote   = "origin"
	DefaultLogLevel = "warn"
	DefaultRetries  = 3
)

// Config represents the bibsync configuration
type Config struct {
	Remote       string `toml:"remote"`
	Branch       string `toml:"branch,omitempty"` // upstream branch; empty = current branch
	File         string `toml:"file"`             // tracked .bib file, relative to the repository root
	AuthorName   string `toml:"author_name"`
	AuthorEmail  string `toml:"author_email"`
	LogLevel     string `toml:"log_level,omitempty"`
	AuthUser     string `toml:"auth_user,omitempty"`
	AuthTokenEnv string `toml:"auth_token_env,omitempty"` // environment variable holding the fetch token
	FetchRetries int    `toml:"fetch_retries,omitempty"`  // negative disables retries
	path         string // path to .bibsync directory
}

// FindRoot finds the .bibsync directory by walking up from the current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRootFrom(dir)
}

// FindRootFrom finds the .bibsync directory by walking up from dir
func FindRootFrom(dir string) (string, error) {
	for {
		p := filepath.Join(dir, Dir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a bibsync repository (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the nearest .bibsync directory
func Load() (*Config, error) {
	p, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(p)
}

// LoadFrom loads the configuration from a given .bibsync directory
func LoadFrom(dirPath string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dirPath, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = dirPath
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Remote == "" {
		c.Remote = DefaultRemote
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.FetchRetries == 0 {
		c.FetchRetries = DefaultRetries
	}
}

// Retries returns the number of fetch retries, zero when disabled
func (c *Config) Retries() int {
	return max(c.FetchRetries, 0)
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the path to the .bibsync directory
func (c *Config) Path() string {
	return c.path
}

// Root returns the directory containing .bibsync
func (c *Config) Root() string {
	return filepath.Dir(c.path)
}

// DatabasePath returns the path to the bbolt database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// FilePath returns the absolute path of the tracked .bib file
func (c *Config) FilePath() string {
	return filepath.Join(c.Root(), filepath.FromSlash(c.File))
}

// AuthToken reads the fetch token from the configured environment variable
func (c *Config) AuthToken() string {
	if c.AuthTokenEnv == "" {
		return ""
	}
	return os.Getenv(c.AuthTokenEnv)
}

// Initialize creates a new .bibsync directory in root tracking file
func Initialize(root, file string) (*Config, error) {
	p := filepath.Join(root, Dir)

	// Check if already initialized
	if _, err := os.Stat(p); err == nil {
		return nil, fmt.Errorf("bibsync repository already exists")
	}

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	cfg := &Config{
		File: filepath.ToSlash(file),
		path: p,
	}
	cfg.applyDefaults()

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(p)
		return nil, err
	}

	return cfg, nil
}
