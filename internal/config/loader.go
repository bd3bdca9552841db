package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the project config file.
const ConfigFileName = "aedesmap.yaml"

// ConfigFileNameAlt is the alternate name of the project config file.
const ConfigFileNameAlt = "aedesmap.yml"

// EnvPrefix is the prefix for environment variable overrides, e.g.
// AEDESMAP_STATE_PATH.
const EnvPrefix = "AEDESMAP_"

// Load reads the project configuration. Precedence, lowest to highest:
// defaults, config file, AEDESMAP_ environment variables, explicitly set
// command-line flags. cfgFile may be empty, in which case the file is
// searched from the working directory upward.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	projectRoot := ""
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %s: %w", cfgFile, err)
		}
		cfgFile = abs
		projectRoot = filepath.Dir(abs)
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		projectRoot = FindProjectRoot(wd)
		if projectRoot != "" {
			cfgFile = findConfigFile(projectRoot)
		} else {
			projectRoot = wd
		}
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// AEDESMAP_STATE_PATH -> state_path; nested keys use double underscore,
	// AEDESMAP_REGION__CELL_SIZE -> region.cell_size
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.ApplyDefaults()

	cfg.Workspace = resolveRelativeTo(cfg.Workspace, projectRoot)
	cfg.StatePath = resolveRelativeTo(cfg.StatePath, projectRoot)
	if cfg.DEM != "" {
		cfg.DEM = resolveRelativeTo(cfg.DEM, projectRoot)
	}
	if cfg.Occurrence.CSV != "" {
		cfg.Occurrence.CSV = resolveRelativeTo(cfg.Occurrence.CSV, projectRoot)
	}
	if cfg.Occurrence.ValidationCSV != "" {
		cfg.Occurrence.ValidationCSV = resolveRelativeTo(cfg.Occurrence.ValidationCSV, projectRoot)
	}
	if cfg.Render.Neighborhoods != "" {
		cfg.Render.Neighborhoods = resolveRelativeTo(cfg.Render.Neighborhoods, projectRoot)
	}
	for i := range cfg.Scenes {
		cfg.Scenes[i].Path = resolveRelativeTo(cfg.Scenes[i].Path, projectRoot)
	}
	for name, path := range cfg.BaseLayers {
		cfg.BaseLayers[name] = resolveRelativeTo(path, projectRoot)
	}

	return &cfg, nil
}

// findConfigFile returns the config file path inside dir, or "".
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir looking for a directory containing
// aedesmap.yaml or aedesmap.yml. Returns "" when none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func resolveRelativeTo(path, base string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
