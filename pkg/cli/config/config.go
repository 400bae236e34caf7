package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the application configuration file
type AppConfig struct {
	CorruptRiskPolicy string   `toml:"corrupt_risk_policy"`
	ExportPrefix      string   `toml:"export_prefix"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	Notify            Notify   `toml:"notify"`

	path string
}

// Notify selects which assessed risks are posted to Slack
type Notify struct {
	Levels  []string `toml:"levels"`
	Channel string   `toml:"channel"`
}

// Flags returns the --config flag
func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML configuration file",
			Sources:     cli.EnvVars("RISKMATRIX_CONFIG"),
			Destination: &a.path,
		},
	}
}

func (a AppConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", a.path),
		slog.String("corrupt_risk_policy", a.CorruptRiskPolicy),
		slog.String("export_prefix", a.ExportPrefix),
		slog.Any("allowed_origins", a.AllowedOrigins),
		slog.Any("notify_levels", a.Notify.Levels),
	)
}

// Path returns the configured file path
func (a *AppConfig) Path() string {
	return a.path
}

// Configure loads the file given by --config. Without one, defaults are used.
func (a *AppConfig) Configure() error {
	if a.path == "" {
		return nil
	}
	loaded, err := LoadAppConfiguration(a.path)
	if err != nil {
		return err
	}
	path := a.path
	*a = *loaded
	a.path = path
	return nil
}

// Policy returns the corrupt risk policy, exclude by default
func (a *AppConfig) Policy() types.CorruptRiskPolicy {
	policy, err := types.ParseCorruptRiskPolicy(a.CorruptRiskPolicy)
	if err != nil {
		return types.CorruptRiskPolicyExclude
	}
	return policy
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if _, err := types.ParseCorruptRiskPolicy(a.CorruptRiskPolicy); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid corrupt_risk_policy",
			goerr.V("corrupt_risk_policy", a.CorruptRiskPolicy))
	}

	if strings.ContainsAny(a.ExportPrefix, `/\`) {
		return goerr.Wrap(ErrInvalidConfig, "export_prefix must not contain path separators",
			goerr.V("export_prefix", a.ExportPrefix))
	}

	for _, origin := range a.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return goerr.Wrap(ErrInvalidConfig, "allowed_origins entries must be absolute origins",
				goerr.V("origin", origin))
		}
	}

	if _, err := a.Notify.RiskLevels(); err != nil {
		return err
	}

	return nil
}

// ExportPrefixOrDefault returns the configured prefix or model.DefaultExportPrefix
func (a *AppConfig) ExportPrefixOrDefault() string {
	if a.ExportPrefix == "" {
		return model.DefaultExportPrefix
	}
	return a.ExportPrefix
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path),
			goerr.V("error", err.Error()))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}
