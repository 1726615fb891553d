// Package aot compiles TensorFlow saved models ahead of time and lays out the
// headers, objects, model wrapper and SCRAM tool file a CMSSW deployment
// needs. The graph compiler itself is an external executable.
package aot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"sigs.k8s.io/yaml"
)

const (
	DefaultServingKey = "serving_default"
	DefaultSavedModel = "saved_model"
	DefaultNamespace  = "cms_tfaot"

	// batchPlaceholder is replaced by the batch size in class names.
	batchPlaceholder = "{}"
)

const (
	errReadConfig  = "cannot read aot config"
	errParseConfig = "cannot parse aot config"
)

// Config is a normalized AOT configuration.
type Config struct {
	Model       ModelConfig       `json:"model"`
	Compilation CompilationConfig `json:"compilation"`

	// Path is the file the config was loaded from.
	Path string `json:"-"`
}

// ModelConfig describes the saved model to compile.
type ModelConfig struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	ServingKey string `json:"serving_key"`
	// SavedModel is resolved against the directory of the config file.
	SavedModel string `json:"saved_model"`
}

// CompilationConfig describes the compiled classes.
type CompilationConfig struct {
	BatchSizes []int  `json:"batch_sizes"`
	Namespace  string `json:"namespace"`
	// ClassName contains "{}" where the batch size goes.
	ClassName string `json:"class_name"`
}

// LoadConfig reads a YAML or JSON config from path, checks the required
// entries and fills in defaults. The saved model directory must exist.
func LoadConfig(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Wrap(err, errReadConfig)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}

	if ok, _ := afero.DirExists(fsys, cfg.Model.SavedModel); !ok {
		return nil, errors.Errorf("'model.saved_model' directory %s does not exist", cfg.Model.SavedModel)
	}
	return cfg, nil
}

// ParseConfig normalizes config data without touching the filesystem. path
// is used for messages and to resolve the saved model directory.
func ParseConfig(data []byte, path string) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errParseConfig)
	}

	model, err := section(raw, "model", path)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"name", "version"} {
		if _, ok := model[key]; !ok {
			return nil, errors.Errorf("missing 'model.%s' entry in %s", key, path)
		}
	}

	cfg := &Config{Path: path}
	cfg.Model.Name = cast.ToString(model["name"])
	cfg.Model.Version = cast.ToString(model["version"])
	cfg.Model.ServingKey = cast.ToString(model["serving_key"])
	cfg.Model.SavedModel = cast.ToString(model["saved_model"])
	if cfg.Model.Name == "" {
		return nil, errors.Errorf("misconfigured 'model.name' entry in %s", path)
	}

	if cfg.Model.ServingKey == "" {
		cfg.Model.ServingKey = DefaultServingKey
	}
	if cfg.Model.SavedModel == "" {
		cfg.Model.SavedModel = DefaultSavedModel
	}
	if !filepath.IsAbs(cfg.Model.SavedModel) {
		cfg.Model.SavedModel = filepath.Join(filepath.Dir(path), cfg.Model.SavedModel)
	}
	cfg.Model.SavedModel = filepath.Clean(cfg.Model.SavedModel)

	compilation, err := section(raw, "compilation", path)
	if err != nil {
		return nil, err
	}
	sizes, ok := compilation["batch_sizes"]
	if !ok {
		return nil, errors.Errorf("missing 'compilation.batch_sizes' entry in %s", path)
	}
	if _, isList := sizes.([]any); !isList {
		return nil, errors.Errorf("misconfigured 'compilation.batch_sizes' entry in %s", path)
	}
	if cfg.Compilation.BatchSizes, err = cast.ToIntSliceE(sizes); err != nil {
		return nil, errors.Wrapf(err, "misconfigured 'compilation.batch_sizes' entry in %s", path)
	}
	if len(cfg.Compilation.BatchSizes) == 0 {
		return nil, errors.Errorf("misconfigured 'compilation.batch_sizes' entry in %s (empty)", path)
	}
	seen := make(map[int]bool)
	for _, bs := range cfg.Compilation.BatchSizes {
		if bs <= 0 || seen[bs] {
			return nil, errors.Errorf("misconfigured 'compilation.batch_sizes' entry in %s (batch size %d)", path, bs)
		}
		seen[bs] = true
	}

	cfg.Compilation.Namespace = cast.ToString(compilation["namespace"])
	if cfg.Compilation.Namespace == "" {
		cfg.Compilation.Namespace = DefaultNamespace
	}
	cfg.Compilation.ClassName = cast.ToString(compilation["class_name"])
	if cfg.Compilation.ClassName == "" {
		cfg.Compilation.ClassName = cfg.Model.Name + "_bs" + batchPlaceholder
	} else if !strings.Contains(cfg.Compilation.ClassName, batchPlaceholder) {
		return nil, errors.Errorf("misconfigured 'compilation.class_name' entry in %s (missing {})", path)
	}

	return cfg, nil
}

func section(raw map[string]any, key, path string) (map[string]any, error) {
	v, ok := raw[key]
	if !ok {
		return nil, errors.Errorf("missing '%s' entry in %s", key, path)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("misconfigured '%s' entry in %s", key, path)
	}
	return m, nil
}

// Prefix is the file prefix of the compiled artifacts, with "{}" standing
// for the batch size.
func (c *Config) Prefix() string {
	return c.Model.Name + "_bs" + batchPlaceholder
}

// CompileClass is the fully qualified class name pattern handed to the
// compiler.
func (c *Config) CompileClass() string {
	if c.Compilation.Namespace == "" {
		return c.Compilation.ClassName
	}
	return c.Compilation.Namespace + "::" + c.Compilation.ClassName
}

// DefaultToolName derives the SCRAM tool name from the model name.
func (c *Config) DefaultToolName() string {
	return fmt.Sprintf("tfaot-model-%s", strings.ReplaceAll(c.Model.Name, "_", "-"))
}
