package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
)

// Load loads the main project configuration from memsync.yaml in dir. A
// missing file yields the defaults rather than an error, so the tool works
// out of the box with just LETTA_API_KEY set.
func Load(dir string) (*Config, error) {
	configFile := filepath.Join(dir, "memsync.yaml")

	content, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			applyDefaults(cfg)
			return cfg, validate(cfg)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeConfigInvalid, "failed to parse config", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	// Match ${env.VAR} pattern
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	// Match ${VAR} pattern
	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL: "https://api.letta.com",
		},
		Memory: MemoryConfig{
			Root: "memory",
		},
		Sync: SyncConfig{
			Policy: "three-way",
		},
		Journal: JournalConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyDefaults(cfg *Config) {
	// Endpoint and API key fall back to the environment before defaults.
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = os.Getenv("LETTA_BASE_URL")
	}
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = "https://api.letta.com"
	}
	if cfg.Memory.Root == "" {
		cfg.Memory.Root = "memory"
	}
	if cfg.Sync.Policy == "" {
		cfg.Sync.Policy = "three-way"
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = "sqlite"
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Memory.Root, ".memsync", "journal.db")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// Load API key from environment if not set
	if cfg.Remote.APIKey == "" {
		cfg.Remote.APIKey = os.Getenv("LETTA_API_KEY")
	}
}

func validate(cfg *Config) error {
	var problems []string

	if cfg.Sync.Policy != "three-way" && cfg.Sync.Policy != "file-wins" {
		problems = append(problems, fmt.Sprintf("invalid sync policy: %s", cfg.Sync.Policy))
	}
	if cfg.Journal.Driver != "sqlite" && cfg.Journal.Driver != "memory" {
		problems = append(problems, fmt.Sprintf("invalid journal driver: %s", cfg.Journal.Driver))
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		problems = append(problems, fmt.Sprintf("invalid logging level: %s", cfg.Logging.Level))
	}

	if len(problems) > 0 {
		return syncerrors.New(syncerrors.CodeConfigInvalid,
			fmt.Sprintf("config validation failed: %s", strings.Join(problems, "; ")))
	}
	return nil
}
