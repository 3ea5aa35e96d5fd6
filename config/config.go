// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	iu "github.com/choria-io/fetch-resources/internal/util"
	"github.com/choria-io/fetch-resources/model"
	"github.com/choria-io/fetch-resources/templates"
)

const schemaURL = "https://choria.io/schemas/fetch-resources/v1/config.json"

var (
	//go:embed schema.json
	schemaJSON []byte

	//go:embed default.yaml
	defaultConfig []byte

	compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			return nil, err
		}

		c := jsonschema.NewCompiler()
		err = c.AddResource(schemaURL, doc)
		if err != nil {
			return nil, err
		}

		return c.Compile(schemaURL)
	})
)

// DefaultRoot is used when neither the configuration nor the command line sets a root
const DefaultRoot = "resources"

// Config describes the resources to fetch and where to put them
type Config struct {
	// Root is the directory all resources are stored below.
	// Relative resource targets are relative to Root.
	Root string `yaml:"root"`

	// Username is used for resources that require authentication, when
	// empty the user is prompted.
	Username string `yaml:"username"`

	// Timeout bounds every request (e.g. "10m"), unset means requests may block indefinitely
	Timeout         string `yaml:"timeout"`
	timeoutDuration time.Duration

	// LogLevel is the log level to use
	// Valid values: debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// MinFreeSpace is the space that has to be available below Root before fetching (e.g. "500MiB")
	MinFreeSpace      string `yaml:"min_free_space"`
	minFreeSpaceBytes uint64

	// MetricsFile receives Prometheus metrics in the textfile format after a run
	MetricsFile string `yaml:"metrics_file"`

	// Data is made available to templates in resource definitions
	Data map[string]any `yaml:"data"`

	// Resources are processed in the order listed
	Resources []model.ResourceDescriptor `yaml:"resources"`
}

// DefaultPath is the per user configuration file
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "choria", "fetch-resources", "resources.yaml")
}

// Default is the built in configuration used when no configuration file exists
func Default() (*Config, error) {
	return ParseConfig(defaultConfig)
}

// Load reads the configuration in file, when file is empty DefaultPath is tried and Default used if it does not exist
func Load(file string) (*Config, error) {
	if file == "" {
		file = DefaultPath()
		if !iu.FileExists(file) {
			return Default()
		}
	}

	c, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return cfg, nil
}

// ParseConfig parses and validates a YAML configuration, templates are not resolved
func ParseConfig(c []byte) (*Config, error) {
	err := validateSchema(c)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel: "warn",
		Data:     map[string]any{},
	}

	err = yaml.Unmarshal(c, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrConfigInvalid, err)
	}

	if cfg.Data == nil {
		cfg.Data = map[string]any{}
	}

	if cfg.Timeout != "" {
		cfg.timeoutDuration, err = fisk.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout: %w", model.ErrConfigInvalid, err)
		}
	}

	if cfg.MinFreeSpace != "" {
		cfg.minFreeSpaceBytes, err = humanize.ParseBytes(cfg.MinFreeSpace)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid min_free_space: %w", model.ErrConfigInvalid, err)
		}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateSchema(c []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("could not compile configuration schema: %w", err)
	}

	j, err := yaml.YAMLToJSON(c)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfigInvalid, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(j))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfigInvalid, err)
	}

	err = schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfigInvalid, err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.timeoutDuration < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", model.ErrConfigInvalid)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level must be one of: debug, info, warn, error", model.ErrConfigInvalid)
	}

	names := make(map[string]struct{}, len(c.Resources))
	for _, r := range c.Resources {
		_, dupe := names[r.Name]
		if dupe {
			return fmt.Errorf("%w: duplicate resource %q", model.ErrConfigInvalid, r.Name)
		}
		names[r.Name] = struct{}{}
	}

	return nil
}

// TimeoutDuration is the parsed Timeout, 0 when unset
func (c *Config) TimeoutDuration() time.Duration {
	return c.timeoutDuration
}

// SetTimeout overrides the configured timeout
func (c *Config) SetTimeout(timeout time.Duration) {
	c.timeoutDuration = timeout
	c.Timeout = timeout.String()
}

// MinFreeSpaceBytes is the parsed MinFreeSpace, 0 when unset
func (c *Config) MinFreeSpaceBytes() uint64 {
	return c.minFreeSpaceBytes
}

// SetMinFreeSpace overrides the configured minimum free space
func (c *Config) SetMinFreeSpace(size uint64) {
	c.minFreeSpaceBytes = size
	c.MinFreeSpace = humanize.IBytes(size)
}

// RequiresAuth determines if any resource needs credentials
func (c *Config) RequiresAuth() bool {
	for _, r := range c.Resources {
		if r.RequiresAuth {
			return true
		}
	}

	return false
}

// Resolve expands templates and relative paths, returning the absolute root and copies of the resources.
// Resources are not validated here, a run reports invalid resources as failed results.
func (c *Config) Resolve(environ map[string]string, facts map[string]any) (string, []model.ResourceDescriptor, error) {
	env := &templates.Env{
		Data:    c.Data,
		Environ: environ,
		Facts:   facts,
	}

	root, err := templates.ResolveTemplateString(c.Root, env)
	if err != nil {
		return "", nil, fmt.Errorf("%w: root: %w", model.ErrConfigInvalid, err)
	}
	if root == "" {
		root = DefaultRoot
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return "", nil, err
	}

	env = &templates.Env{
		Root:    root,
		Data:    c.Data,
		Environ: environ,
		Facts:   facts,
	}

	resolved := make([]model.ResourceDescriptor, 0, len(c.Resources))
	for _, r := range c.Resources {
		d := r
		d.Headers = maps.Clone(r.Headers)

		err = d.ResolveTemplates(env)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %w", model.ErrConfigInvalid, r.Name, err)
		}

		switch {
		case d.Target == "":
			d.Target = root
		case !filepath.IsAbs(d.Target):
			d.Target = filepath.Join(root, d.Target)
		default:
			d.Target = filepath.Clean(d.Target)
		}

		resolved = append(resolved, d)
	}

	return root, resolved, nil
}
