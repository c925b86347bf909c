package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"

	"github.com/kebairia/deployctl/internal/config"
	"github.com/kebairia/deployctl/internal/logger"
	"github.com/kebairia/deployctl/internal/runtime"
)

// ComposeCheckFunc validates that a compose file defines a service.
type ComposeCheckFunc func(ctx context.Context, path, project, service string, env map[string]string) error

// ValidatorOption lets you override default settings on a Validator.
type ValidatorOption func(*Validator)

// Validator checks everything a deploy needs before anything is touched.
// Every check runs; the problems are reported together.
type Validator struct {
	cfg          *config.Config
	probe        RuntimeProbe
	secrets      SecretSource
	writable     func() error
	composeCheck ComposeCheckFunc
	exportEnv    func(map[string]string)
	log          logger.Logger
}

// WithRuntimeProbe pings the container engine during Check.
func WithRuntimeProbe(p RuntimeProbe) ValidatorOption {
	return func(v *Validator) {
		v.probe = p
	}
}

// WithSecretSource resolves required variables missing from the env file.
func WithSecretSource(s SecretSource) ValidatorOption {
	return func(v *Validator) {
		v.secrets = s
	}
}

// WithWritableCheck verifies the backup directory accepts writes.
func WithWritableCheck(check func() error) ValidatorOption {
	return func(v *Validator) {
		v.writable = check
	}
}

// WithComposeCheck overrides compose file validation.
func WithComposeCheck(check ComposeCheckFunc) ValidatorOption {
	return func(v *Validator) {
		if check != nil {
			v.composeCheck = check
		}
	}
}

// WithEnvExport receives the secrets resolved from the secret source so
// they can be handed to the compose process.
func WithEnvExport(export func(map[string]string)) ValidatorOption {
	return func(v *Validator) {
		v.exportEnv = export
	}
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(log logger.Logger) ValidatorOption {
	return func(v *Validator) {
		if log != nil {
			v.log = log
		}
	}
}

// NewValidator returns a Validator for cfg.
func NewValidator(cfg *config.Config, opts ...ValidatorOption) *Validator {
	v := &Validator{
		cfg:          cfg,
		composeCheck: runtime.CheckComposeService,
		log:          logger.Global(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check runs every prerequisite check and returns ErrPrerequisite joined
// with each problem found.
func (v *Validator) Check(ctx context.Context) error {
	v.log.Info("prerequisite check started")
	var problems []error

	if err := v.cfg.Validate(); err != nil {
		problems = append(problems, err)
	}

	env, err := v.resolveEnv(ctx)
	if err != nil {
		problems = append(problems, err)
	}

	if v.cfg.Service.ComposeFile != "" {
		if err := v.composeCheck(ctx, v.cfg.Service.ComposeFile, v.cfg.Service.Project, v.cfg.Service.Name, env); err != nil {
			problems = append(problems, fmt.Errorf("compose file: %w", err))
		}
	}

	if v.probe != nil {
		if err := v.probe.Ping(ctx); err != nil {
			problems = append(problems, err)
		}
	}

	if v.writable != nil {
		if err := v.writable(); err != nil {
			problems = append(problems, fmt.Errorf("backup directory %s is not writable: %w", v.cfg.Backup.Directory, err))
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			v.log.Error("prerequisite not met", "error", p.Error())
		}
		return fmt.Errorf("%w: %w", ErrPrerequisite, errors.Join(problems...))
	}
	v.log.Info("prerequisite check completed")
	return nil
}

// resolveEnv reads the env file, fills required keys it lacks from the
// secret source, and returns the variables used for compose
// interpolation.
func (v *Validator) resolveEnv(ctx context.Context) (map[string]string, error) {
	env := environMap()

	if path := v.cfg.Service.EnvFile; path != "" {
		values, err := ReadEnvFile(path)
		if err != nil {
			return env, err
		}
		for k, val := range values {
			env[k] = val
		}
	}

	missing := missingKeys(env, v.cfg.Service.RequiredEnv)

	if v.secrets != nil && v.cfg.Vault.SecretPath != "" {
		secrets, err := v.secrets.ReadSecrets(ctx, v.cfg.Vault.SecretPath)
		if err != nil {
			return env, fmt.Errorf("read secrets from vault: %w", err)
		}
		for k, val := range secrets {
			env[k] = val
		}
		if v.exportEnv != nil && len(secrets) > 0 {
			v.exportEnv(secrets)
		}
		v.log.Debug("secrets resolved", "path", v.cfg.Vault.SecretPath, "count", len(secrets))
		missing = missingKeys(env, v.cfg.Service.RequiredEnv)
	}

	if len(missing) > 0 {
		return env, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return env, nil
}

// ReadEnvFile parses a dotenv file.
func ReadEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("env file: %w", err)
	}
	values, err := dotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return values, nil
}

func missingKeys(env map[string]string, required []string) []string {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(env[key]) == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, val, ok := strings.Cut(kv, "="); ok {
			env[k] = val
		}
	}
	return env
}
