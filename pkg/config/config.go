// Package config assembles the run configuration from defaults, an optional
// YAML or TOML file, a .env file and RECTASK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ja7ad/rectask/pkg/consumption"
	"github.com/ja7ad/rectask/pkg/report"
	"github.com/ja7ad/rectask/pkg/task"
)

// DefaultEnergyLimit is the budget used when none is configured, in mWh.
const DefaultEnergyLimit = 10000.0

// Config is the complete, immutable run configuration.
type Config struct {
	Report    ReportConfig    `yaml:"report" toml:"report"`
	Energy    EnergyConfig    `yaml:"energy" toml:"energy"`
	Power     PowerConfig     `yaml:"power" toml:"power"`
	Integrity IntegrityConfig `yaml:"integrity" toml:"integrity"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ReportConfig configures the task-tracking service.
type ReportConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	BaseURL       string `yaml:"base_url" toml:"base_url"`
	Token         string `yaml:"token" toml:"token"`
	TaskID        string `yaml:"task_id" toml:"task_id"`
	TaskPath      string `yaml:"task_path" toml:"task_path"`
	ExecutionPath string `yaml:"execution_path" toml:"execution_path"`
	Timeout       string `yaml:"timeout" toml:"timeout"`       // per attempt, e.g. "5s"
	Attempts      int    `yaml:"attempts" toml:"attempts"`     // total, including the first
	BaseDelay     string `yaml:"base_delay" toml:"base_delay"` // doubles on every retry
}

// EnergyConfig holds the budget.
type EnergyConfig struct {
	LimitMilliwattHours float64 `yaml:"limit_mwh" toml:"limit_mwh"`
}

// PowerConfig holds the power model coefficients.
type PowerConfig struct {
	consumption.Profile `yaml:",inline"`

	// RespectCgroup caps cores and RAM by the container's cgroup limits.
	RespectCgroup bool `yaml:"respect_cgroup" toml:"respect_cgroup"`
}

// IntegrityConfig selects the file hashed by the integrity guard.
type IntegrityConfig struct {
	Path string `yaml:"path" toml:"path"` // empty: the running executable
}

// LogConfig configures zap.
type LogConfig struct {
	Verbose bool   `yaml:"verbose" toml:"verbose"`
	Format  string `yaml:"format" toml:"format"` // json or console
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	Insecure bool   `yaml:"insecure" toml:"insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Report: ReportConfig{
			TaskPath:      task.DefaultTaskPath,
			ExecutionPath: task.DefaultExecutionPath,
			Timeout:       report.DefaultTimeout.String(),
			Attempts:      report.DefaultAttempts,
			BaseDelay:     report.DefaultBaseDelay.String(),
		},
		Energy: EnergyConfig{LimitMilliwattHours: DefaultEnergyLimit},
		Power:  PowerConfig{Profile: consumption.DefaultProfile()},
		Log:    LogConfig{Format: "console"},
	}
}

var (
	ErrInvalid = errors.New("invalid config")
)

// Load builds a Config: defaults, then the file at path (skipped when empty),
// then environment overrides. The file format follows the extension:
// .yaml/.yml or .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: env file %s: %v", ErrInvalid, path, err)
	}
	return nil
}

func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	case ".toml":
		err = toml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalid, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("RECTASK_TASK_ID"); v != "" {
		c.Report.TaskID = v
	}
	if v := os.Getenv("RECTASK_TOKEN"); v != "" {
		c.Report.Token = v
	}
	if v := os.Getenv("RECTASK_BASE_URL"); v != "" {
		c.Report.BaseURL = v
	}
	if v := os.Getenv("RECTASK_REPORT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: RECTASK_REPORT: %v", ErrInvalid, err)
		}
		c.Report.Enabled = b
	}
	if v := os.Getenv("RECTASK_ENERGY_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: RECTASK_ENERGY_LIMIT: %v", ErrInvalid, err)
		}
		c.Energy.LimitMilliwattHours = f
	}
	if v := os.Getenv("RECTASK_INTEGRITY_PATH"); v != "" {
		c.Integrity.Path = v
	}
	if v := os.Getenv("RECTASK_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	return nil
}

// Validate checks the configuration for the selected mode.
func (c Config) Validate() error {
	if c.Energy.LimitMilliwattHours < 0 {
		return fmt.Errorf("%w: energy.limit_mwh must be >= 0", ErrInvalid)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log.format must be json or console", ErrInvalid)
	}

	if !c.Report.Enabled {
		return nil
	}
	if c.Report.TaskID == "" {
		return fmt.Errorf("%w: report.task_id is required", ErrInvalid)
	}
	if c.Report.Token == "" {
		return fmt.Errorf("%w: report.token is required", ErrInvalid)
	}
	if c.Report.BaseURL == "" {
		return fmt.Errorf("%w: report.base_url is required", ErrInvalid)
	}
	if c.Report.Attempts < 1 {
		return fmt.Errorf("%w: report.attempts must be >= 1", ErrInvalid)
	}
	if _, err := c.Report.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Report.BaseDelayDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout.
func (r ReportConfig) TimeoutDuration() (time.Duration, error) {
	return positiveDuration("report.timeout", r.Timeout)
}

// BaseDelayDuration parses BaseDelay.
func (r ReportConfig) BaseDelayDuration() (time.Duration, error) {
	return positiveDuration("report.base_delay", r.BaseDelay)
}

func positiveDuration(field, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0", ErrInvalid, field)
	}
	return d, nil
}
