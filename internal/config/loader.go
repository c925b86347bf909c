package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// EnvPrefix is the prefix for environment overrides, e.g.
// DEPLOYCTL_HEALTH_ENDPOINT overrides health.endpoint.
const EnvPrefix = "DEPLOYCTL"

// Config represents the top-level YAML configuration file.
type Config struct {
	Include   []string        `mapstructure:"include"   yaml:"include,omitempty"`
	Service   ServiceConfig   `mapstructure:"service"   yaml:"service"`
	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Health    HealthConfig    `mapstructure:"health"    yaml:"health"`
	Verify    VerifyConfig    `mapstructure:"verify"    yaml:"verify"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"   yaml:"runtime"`
	Vault     VaultConfig     `mapstructure:"vault"     yaml:"vault"`
	State     StateConfig     `mapstructure:"state"     yaml:"state"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Log       LogConfig       `mapstructure:"log"       yaml:"log"`
}

// ServiceConfig describes the deployment unit and the files it owns.
type ServiceConfig struct {
	Name        string   `mapstructure:"name"         yaml:"name"`
	Project     string   `mapstructure:"project"      yaml:"project,omitempty"`
	ComposeFile string   `mapstructure:"compose_file" yaml:"compose_file"`
	EnvFile     string   `mapstructure:"env_file"     yaml:"env_file"`
	RequiredEnv []string `mapstructure:"required_env" yaml:"required_env,omitempty"`
	DataDir     string   `mapstructure:"data_dir"     yaml:"data_dir"`
	LogsDir     string   `mapstructure:"logs_dir"     yaml:"logs_dir"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	Directory       string `mapstructure:"directory"        yaml:"directory"`
	TimestampFormat string `mapstructure:"timestamp_format" yaml:"timestamp_format"`
	CompressLogs    bool   `mapstructure:"compress_logs"    yaml:"compress_logs"`
}

// RetentionConfig specifies how many backups survive cleanup.
type RetentionConfig struct {
	KeepLast int `mapstructure:"keep_last" yaml:"keep_last"`
}

// HealthConfig configures the readiness poll after a deploy.
type HealthConfig struct {
	Endpoint       string        `mapstructure:"endpoint"        yaml:"endpoint"`
	MaxAttempts    int           `mapstructure:"max_attempts"    yaml:"max_attempts"`
	Interval       time.Duration `mapstructure:"interval"        yaml:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// VerifyConfig configures the test suite run inside the freshly built image.
type VerifyConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Command []string `mapstructure:"command" yaml:"command,omitempty"`
}

// RuntimeConfig configures the container runtime boundary.
type RuntimeConfig struct {
	Binary     string        `mapstructure:"binary"      yaml:"binary"`
	DockerHost string        `mapstructure:"docker_host" yaml:"docker_host,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
// Vault is optional; it is only contacted when Address is set.
type VaultConfig struct {
	Address     string `mapstructure:"address"      yaml:"address,omitempty"`
	RoleID      string `mapstructure:"role_id"      yaml:"role_id,omitempty"`
	ApproleName string `mapstructure:"approle_name" yaml:"approle_name,omitempty"`
	SecretPath  string `mapstructure:"secret_path"  yaml:"secret_path,omitempty"`
}

// StateConfig locates the deployment history database.
type StateConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"       yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "app")
	v.SetDefault("service.project", "")
	v.SetDefault("service.compose_file", "docker-compose.yml")
	v.SetDefault("service.env_file", ".env")
	v.SetDefault("service.required_env", []string{"GROQ_API_KEY", "SECRET_KEY"})
	v.SetDefault("service.data_dir", "data")
	v.SetDefault("service.logs_dir", "logs")

	v.SetDefault("backup.directory", "backups")
	v.SetDefault("backup.timestamp_format", "20060102_150405")
	v.SetDefault("backup.compress_logs", false)

	v.SetDefault("retention.keep_last", 5)

	v.SetDefault("health.endpoint", "http://localhost:8000/health/ready")
	v.SetDefault("health.max_attempts", 30)
	v.SetDefault("health.interval", "10s")
	v.SetDefault("health.request_timeout", "5s")

	v.SetDefault("verify.enabled", true)
	v.SetDefault("verify.command", []string{"python", "-m", "pytest", "tests/", "-v"})

	v.SetDefault("runtime.binary", "docker")
	v.SetDefault("runtime.docker_host", "")
	v.SetDefault("runtime.timeout", "0s")

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.role_id", "")
	v.SetDefault("vault.approle_name", "")
	v.SetDefault("vault.secret_path", "")

	v.SetDefault("state.path", "")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, applies DEPLOYCTL_* environment overrides
// and unmarshals into the Config struct. An empty path loads defaults only.
func (c *Config) Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read base configuration
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	if c.Service.Project == "" {
		c.Service.Project = c.Service.Name
	}
	return nil
}

// Validate checks the values every command relies on.
func (c *Config) Validate() error {
	var problems []string
	if c.Service.Name == "" {
		problems = append(problems, "service.name is required")
	}
	if c.Service.ComposeFile == "" {
		problems = append(problems, "service.compose_file is required")
	}
	if c.Backup.Directory == "" {
		problems = append(problems, "backup.directory is required")
	}
	if c.Backup.TimestampFormat == "" {
		problems = append(problems, "backup.timestamp_format is required")
	}
	if c.Retention.KeepLast < 1 {
		problems = append(problems, "retention.keep_last must be at least 1")
	}
	if c.Health.Endpoint == "" {
		problems = append(problems, "health.endpoint is required")
	}
	if c.Health.MaxAttempts < 1 {
		problems = append(problems, "health.max_attempts must be at least 1")
	}
	if c.Health.Interval <= 0 {
		problems = append(problems, "health.interval must be positive")
	}
	if c.Verify.Enabled && len(c.Verify.Command) == 0 {
		problems = append(problems, "verify.command is required when verify.enabled is true")
	}
	if c.Vault.Address != "" && c.Vault.SecretPath == "" {
		problems = append(problems, "vault.secret_path is required when vault.address is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidateConfig, strings.Join(problems, "; "))
	}
	return nil
}

// StatePath returns the history database location, defaulting to a file
// inside the backup directory.
func (c *Config) StatePath() string {
	if c.State.Path != "" {
		return c.State.Path
	}
	return filepath.Join(c.Backup.Directory, ".deployctl.db")
}
