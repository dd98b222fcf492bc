package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"codedojo/internal/progress"
	"codedojo/internal/runner"
	"codedojo/internal/telemetry"
	"codedojo/internal/watch"

	"github.com/spf13/viper"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Config controls runtime behavior. Values come from .codedojo.yaml,
// CODEDOJO_* environment variables and command-line flags.
type Config struct {
	// Workspace anchors the relative curriculum and progress paths.
	Workspace string `mapstructure:"workspace"`
	// Curriculum holds curriculum.yaml and the units. The toolchain runs here
	// so unit package paths resolve. Defaults to Workspace.
	Curriculum    string        `mapstructure:"curriculum"`
	Store         string        `mapstructure:"store"`
	ProgressPath  string        `mapstructure:"progress_path"`
	LogPath       string        `mapstructure:"log_path"`
	LogLevel      string        `mapstructure:"log_level"`
	Toolchain     string        `mapstructure:"toolchain"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	ASCIIOnly     bool          `mapstructure:"ascii"`
}

func DefaultConfig() Config {
	return Config{
		Workspace:     ".",
		Store:         StoreJSON,
		LogLevel:      "info",
		Toolchain:     strings.Join(runner.DefaultCommand(), " "),
		IdleTimeout:   runner.DefaultConfig().IdleTimeout,
		WatchDebounce: watch.DefaultDebounce,
	}
}

// LoadConfig applies defaults to v and decodes it.
func LoadConfig(v *viper.Viper) (Config, error) {
	def := DefaultConfig()
	v.SetDefault("workspace", def.Workspace)
	v.SetDefault("curriculum", "")
	v.SetDefault("store", def.Store)
	v.SetDefault("progress_path", "")
	v.SetDefault("log_path", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("toolchain", def.Toolchain)
	v.SetDefault("idle_timeout", def.IdleTimeout)
	v.SetDefault("watch", false)
	v.SetDefault("watch_debounce", def.WatchDebounce)
	v.SetDefault("ascii", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values and fills in derived paths.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workspace) == "" {
		c.Workspace = "."
	}
	ws, err := filepath.Abs(c.Workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	c.Workspace = ws

	switch {
	case c.Curriculum == "":
		c.Curriculum = c.Workspace
	case !filepath.IsAbs(c.Curriculum):
		c.Curriculum = filepath.Join(c.Workspace, c.Curriculum)
	}

	switch c.Store {
	case "":
		c.Store = StoreJSON
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("invalid store %q", c.Store)
	}
	if c.ProgressPath == "" {
		if c.Store == StoreSQLite {
			c.ProgressPath = filepath.Join(c.Workspace, ".codedojo", "progress.db")
		} else {
			c.ProgressPath = filepath.Join(c.Workspace, progress.DefaultFileName)
		}
	} else if !filepath.IsAbs(c.ProgressPath) {
		c.ProgressPath = filepath.Join(c.Workspace, c.ProgressPath)
	}

	if _, err := telemetry.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if len(c.Command()) == 0 {
		return errors.New("toolchain command is empty")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout %s", c.IdleTimeout)
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = watch.DefaultDebounce
	}
	return nil
}

// Command splits the toolchain template into argv.
func (c Config) Command() []string {
	return strings.Fields(c.Toolchain)
}

// RunnerConfig builds the process runner settings. Tests run from the
// curriculum root so unit package paths resolve.
func (c Config) RunnerConfig() runner.Config {
	rc := runner.DefaultConfig()
	rc.Command = c.Command()
	rc.Dir = c.Curriculum
	rc.IdleTimeout = c.IdleTimeout
	return rc
}
