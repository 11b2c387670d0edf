// Package config loads orchestrator settings from three layers: built-in
// defaults, an optional YAML settings file, and PREFLIGHT_* environment
// variables. Later layers win. Flags are applied on top by the CLI and are
// not handled here.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/logger"
)

var configLog = logger.New("config")

// Settings are the run-wide knobs that are not part of the pipeline
// manifest: they describe how to run, not what to validate.
type Settings struct {
	// TimeoutSeconds is the default per-stage subprocess timeout.
	TimeoutSeconds int `koanf:"timeout_seconds"`
	// Parallel enables concurrent execution of grouped stages.
	Parallel bool `koanf:"parallel"`
	// KeepEnv leaves the ephemeral environment on disk after the run.
	KeepEnv bool `koanf:"keep_env"`
	// ForceProvision installs every tool into the ephemeral environment
	// even when a system copy exists.
	ForceProvision bool `koanf:"force_provision"`
	// InstallRoot is the parent directory for ephemeral environments.
	InstallRoot string `koanf:"install_root"`
	// NoColor disables styled output regardless of terminal detection.
	NoColor bool `koanf:"no_color"`
}

// StageTimeout returns TimeoutSeconds as a duration.
func (s Settings) StageTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func defaults() Settings {
	return Settings{
		TimeoutSeconds: int(constants.DefaultStageTimeout / time.Second),
	}
}

// Load builds Settings from defaults, the settings file at path (skipped
// when path is empty or the file does not exist), and PREFLIGHT_*
// environment variables.
func Load(path string) (Settings, error) {
	k := koanf.New(".")

	// Unmarshal only overwrites fields present in the loaded layers, so
	// starting from the defaults struct gives defaults-lose-to-file-lose-
	// to-env precedence without a separate defaults provider.
	settings := defaults()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			configLog.Printf("settings file %s not found, skipping", path)
		case err != nil:
			return Settings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
			configLog.Printf("loaded settings from %s", path)
		}
	}

	envProvider := env.Provider(constants.EnvPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, constants.EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Settings{}, fmt.Errorf("failed to load environment settings: %w", err)
	}

	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if settings.TimeoutSeconds <= 0 {
		return Settings{}, fmt.Errorf("timeout_seconds must be positive, got %d", settings.TimeoutSeconds)
	}
	return settings, nil
}
