package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Config holds the ambient configuration shared by cmd/cgseed and
// cmd/cgbench: worker fan-out and the per-run node count.
type Config struct {
	Workers   int `json:"workers,omitempty"`
	SeedNodes int `json:"seed_nodes,omitempty"`
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".cgconfig.json"

// DefaultConfig returns the built-in defaults, the lowest-precedence
// layer.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		SeedNodes: 1000,
	}
}

// getGlobalConfigPath returns $XDG_CONFIG_HOME/callgraph/config.json, or
// ~/.config/callgraph/config.json, or "" if neither can be determined.
func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "callgraph", "config.json")
		}
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "callgraph", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "callgraph", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with precedence (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Project config file (ConfigFileName in workDir, or configPath if set)
// 4. CLI overrides.
func LoadConfig(workDir, configPath string, cliOverrides Config, hasWorkersOverride bool, env []string) (Config, error) {
	cfg := DefaultConfig()

	globalCfg, err := loadOptionalConfigFile(getGlobalConfigPath(env), false)
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, globalCfg)

	var (
		projectFile string
		mustExist   bool
	)

	if configPath != "" {
		projectFile = configPath
		if !filepath.IsAbs(projectFile) {
			projectFile = filepath.Join(workDir, projectFile)
		}

		mustExist = true
	} else {
		projectFile = filepath.Join(workDir, ConfigFileName)
	}

	projectCfg, err := loadOptionalConfigFile(projectFile, mustExist)
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, projectCfg)

	if hasWorkersOverride {
		cfg.Workers = cliOverrides.Workers
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadOptionalConfigFile(path string, mustExist bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled CLI config
	if err != nil {
		if os.IsNotExist(err) {
			if !mustExist {
				return Config{}, nil
			}

			return Config{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}

		return Config{}, fmt.Errorf("%w %s: %w", errConfigFileRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.Workers != 0 {
		base.Workers = overlay.Workers
	}

	if overlay.SeedNodes != 0 {
		base.SeedNodes = overlay.SeedNodes
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.Workers <= 0 {
		return errWorkersInvalid
	}

	return nil
}

// FormatConfig renders cfg as indented JSON.
func FormatConfig(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cliconfig: format: %w", err)
	}

	return string(data), nil
}

// Save atomically writes cfg as JSON to path, matching the teacher CLI's
// write-then-rename pattern for every on-disk artifact it produces.
func Save(path string, cfg Config) error {
	body, err := FormatConfig(cfg)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, strings.NewReader(body)); err != nil {
		return fmt.Errorf("cliconfig: save %s: %w", path, err)
	}

	return nil
}
