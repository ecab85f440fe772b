package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the project config file looked up in the working directory.
const ConfigFileName = ".pj.json"

// Defaults.
const (
	DefaultIndexFile   = ".project-index.json"
	DefaultNowLimit    = 3
	DefaultDoneVisible = 5
	DefaultLogLevel    = "warn"
)

// Config holds all configuration options.
type Config struct {
	// From config files
	Root        string
	IndexFile   string
	StageDirs   map[Stage]string
	NowLimit    int
	DoneVisible int
	AutoSync    bool
	Hook        string
	LogLevel    string

	// Resolved (computed after merging)
	EffectiveCwd string // Absolute working directory (from -C flag or os.Getwd)
	RootAbs      string // Absolute workspace root
	IndexPath    string // Absolute path of the index file
	Layout       Layout

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// fileConfig is the on-disk shape. Pointers distinguish "unset" from zero.
type fileConfig struct {
	Root        *string           `json:"root,omitempty"`
	IndexFile   *string           `json:"index_file,omitempty"`
	StageDirs   map[string]string `json:"stage_dirs,omitempty"`
	NowLimit    *int              `json:"now_limit,omitempty"`
	DoneVisible *int              `json:"done_visible,omitempty"`
	AutoSync    *bool             `json:"auto_sync,omitempty"`
	Hook        *string           `json:"hook,omitempty"`
	LogLevel    *string           `json:"log_level,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Root:        ".",
		IndexFile:   DefaultIndexFile,
		StageDirs:   DefaultStageDirs(),
		NowLimit:    DefaultNowLimit,
		DoneVisible: DefaultDoneVisible,
		LogLevel:    DefaultLogLevel,
	}
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	RootOverride    string            // --root flag value; empty means no override
	Env             map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/pj/config.json or ~/.config/pj/config.json)
// 3. Project config file (.pj.json in the working directory, if it exists)
// 4. Explicit config file via ConfigPath (replaces 3, must exist)
// 5. CLI overrides.
//
// Relative paths in a config file are resolved against the working
// directory. All paths in the returned Config are absolute.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolving working directory: %w", err)
	}

	cfg := DefaultConfig()

	if globalPath := globalConfigPath(input.Env); globalPath != "" {
		loaded, err := mergeConfigFile(&cfg, globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	loaded, err := mergeConfigFile(&cfg, projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
	}

	if input.RootOverride != "" {
		cfg.Root = input.RootOverride
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.RootAbs = absFrom(workDir, cfg.Root)
	cfg.IndexPath = absFrom(cfg.RootAbs, cfg.IndexFile)
	cfg.Layout = NewLayout(cfg.RootAbs, cfg.StageDirs)

	return cfg, nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/pj/config.json or
// ~/.config/pj/config.json, or "" if neither can be determined.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "pj", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "pj", "config.json")
	}

	return ""
}

// mergeConfigFile overlays the file at path onto cfg. A missing file is
// only an error when mustExist is set. Reports whether a file was loaded.
func mergeConfigFile(cfg *Config, path string, mustExist bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return false, nil
		}

		return false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	fc, err := parseConfig(data)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if err := applyFileConfig(cfg, fc); err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return true, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	if fc.Root != nil {
		if *fc.Root == "" {
			return ErrRootEmpty
		}

		cfg.Root = *fc.Root
	}

	if fc.IndexFile != nil {
		if *fc.IndexFile == "" {
			return ErrIndexFileEmpty
		}

		cfg.IndexFile = *fc.IndexFile
	}

	for key, dir := range fc.StageDirs {
		stage, err := ParseStage(key)
		if err != nil {
			return fmt.Errorf("stage_dirs: %w", err)
		}

		cfg.StageDirs[stage] = dir
	}

	if fc.NowLimit != nil {
		cfg.NowLimit = *fc.NowLimit
	}

	if fc.DoneVisible != nil {
		cfg.DoneVisible = *fc.DoneVisible
	}

	if fc.AutoSync != nil {
		cfg.AutoSync = *fc.AutoSync
	}

	if fc.Hook != nil {
		cfg.Hook = *fc.Hook
	}

	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}

	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Root == "" {
		return ErrRootEmpty
	}

	if cfg.IndexFile == "" {
		return ErrIndexFileEmpty
	}

	if cfg.NowLimit < 0 {
		return fmt.Errorf("%w: now_limit must be >= 0", ErrConfigInvalid)
	}

	if cfg.DoneVisible < 0 {
		return fmt.Errorf("%w: done_visible must be >= 0", ErrConfigInvalid)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrConfigInvalid, cfg.LogLevel)
	}

	seen := make(map[string]Stage, len(cfg.StageDirs))

	for _, stage := range Stages() {
		dir := cfg.StageDirs[stage]
		if dir == "" || dir == "." || dir == ".." || strings.ContainsAny(dir, "/\\") {
			return fmt.Errorf("%w: stage_dirs.%s must be a single directory name, got %q", ErrConfigInvalid, stage, dir)
		}

		if other, dup := seen[dir]; dup {
			return fmt.Errorf("%w: stage_dirs.%s and stage_dirs.%s both use %q", ErrConfigInvalid, other, stage, dir)
		}

		seen[dir] = stage
	}

	return nil
}

func absFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(base, path)
}

// StarterConfig is the JSONC written by `pj init`.
const StarterConfig = `{
  // Workspace root holding one directory per stage.
  "root": ".",
  "index_file": ".project-index.json",

  // Maximum projects in NOW before "start" needs --force (0 disables).
  "now_limit": 3,

  // DONE projects listed by "status" before truncating.
  "done_visible": 5,

  // Reconcile index and directories before every mutating command.
  "auto_sync": false,

  // Shell command run after each completed transition.
  // Receives PJ_OPERATION, PJ_PROJECT, PJ_STAGE, PJ_PREVIOUS_STAGE, PJ_PATH.
  "hook": "",

  "log_level": "warn"
}
`
