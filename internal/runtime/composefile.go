package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// LoadComposeFile parses and validates a compose file. env supplies the
// variables used for interpolation.
func LoadComposeFile(ctx context.Context, path, project string, env map[string]string) (*types.Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	var dict map[string]any
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, fmt.Errorf("compose file %s: invalid YAML: %w", path, err)
	}
	if dict == nil {
		return nil, fmt.Errorf("compose file %s is empty", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	workDir := filepath.Dir(absPath)
	imperative := project != ""
	if !imperative {
		project = loader.NormalizeProjectName(filepath.Base(workDir))
	}

	p, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: workDir,
		ConfigFiles: []types.ConfigFile{
			{
				Filename: absPath,
				Content:  content,
				Config:   dict,
			},
		},
		Environment: types.Mapping(env),
	}, func(opts *loader.Options) {
		opts.SetProjectName(project, imperative)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("compose file %s: %w", path, err)
	}
	return p, nil
}

// CheckComposeService loads the compose file and confirms it defines
// service.
func CheckComposeService(ctx context.Context, path, project, service string, env map[string]string) error {
	p, err := LoadComposeFile(ctx, path, project, env)
	if err != nil {
		return err
	}
	if _, ok := p.Services[service]; !ok {
		return fmt.Errorf("%w: %q in %s", ErrServiceNotDefined, service, path)
	}
	return nil
}
