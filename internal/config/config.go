// Package config provides configuration management for the prefab tool
// using Viper for loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the PREFAB_ prefix, and validation. It covers the project
// layout used to resolve prefab paths, loader limits, the schema used for
// default values, save formatting, logging and the file watcher.
package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/conneroisu/prefab/internal/codec"
	"github.com/conneroisu/prefab/internal/errors"
	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/paths"
	"github.com/conneroisu/prefab/internal/schema"
)

// Defaults applied by Load.
const (
	DefaultMaxDepth = 64
	DefaultIndent   = codec.DefaultIndent
	DefaultDebounce = 300 * time.Millisecond
)

// DefaultExtensions lists the file extensions treated as prefab documents.
var DefaultExtensions = []string{".prefab", ".json", ".yaml", ".yml"}

type Config struct {
	Project     ProjectConfig `mapstructure:"project" yaml:"project"`
	Loader      LoaderConfig  `mapstructure:"loader" yaml:"loader"`
	Schema      SchemaConfig  `mapstructure:"schema" yaml:"schema"`
	Save        SaveConfig    `mapstructure:"save" yaml:"save"`
	Logging     LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Watch       WatchConfig   `mapstructure:"watch" yaml:"watch"`
	TargetFiles []string      `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type ProjectConfig struct {
	Root        string   `mapstructure:"root" yaml:"root"`
	SourceRoots []string `mapstructure:"source_roots" yaml:"source_roots"`
}

type LoaderConfig struct {
	MaxDepth   int      `mapstructure:"max_depth" yaml:"max_depth"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

type SchemaConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

type SaveConfig struct {
	Indent int `mapstructure:"indent" yaml:"indent"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "PREFAB"

// BindEnv makes v read PREFAB_SECTION_KEY environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every key with v so that environment variables and
// flags bound to it are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.root", ".")
	v.SetDefault("project.source_roots", []string{})
	v.SetDefault("loader.max_depth", DefaultMaxDepth)
	v.SetDefault("loader.extensions", DefaultExtensions)
	v.SetDefault("schema.file", "")
	v.SetDefault("save.indent", DefaultIndent)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("watch.debounce", DefaultDebounce)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "failed to decode configuration")
	}

	// Handle slices set via viper from env or flags (workaround for viper slice handling)
	if v.IsSet("project.source_roots") && len(config.Project.SourceRoots) == 0 {
		config.Project.SourceRoots = v.GetStringSlice("project.source_roots")
	}
	if v.IsSet("loader.extensions") && len(config.Loader.Extensions) == 0 {
		config.Loader.Extensions = v.GetStringSlice("loader.extensions")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "invalid configuration")
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Project.Root == "" {
		config.Project.Root = "."
	}
	if len(config.Project.SourceRoots) == 0 {
		config.Project.SourceRoots = []string{config.Project.Root}
	}
	if config.Loader.MaxDepth == 0 {
		config.Loader.MaxDepth = DefaultMaxDepth
	}
	if len(config.Loader.Extensions) == 0 {
		config.Loader.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if config.Save.Indent == 0 {
		config.Save.Indent = DefaultIndent
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateProjectConfig(&config.Project); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := validateLoaderConfig(&config.Loader); err != nil {
		return fmt.Errorf("loader config: %w", err)
	}

	if err := validateSaveConfig(&config.Save); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if config.Watch.Debounce < 0 || config.Watch.Debounce > time.Minute {
		return fmt.Errorf("watch config: debounce %s is not in range 0-1m", config.Watch.Debounce)
	}

	return nil
}

func validateProjectConfig(config *ProjectConfig) error {
	if err := validatePath(config.Root); err != nil {
		return fmt.Errorf("invalid root '%s': %w", config.Root, err)
	}

	for _, root := range config.SourceRoots {
		if err := validatePath(root); err != nil {
			return fmt.Errorf("invalid source root '%s': %w", root, err)
		}
	}

	return nil
}

func validateLoaderConfig(config *LoaderConfig) error {
	if config.MaxDepth < 1 || config.MaxDepth > 4096 {
		return fmt.Errorf("max_depth %d is not in valid range 1-4096", config.MaxDepth)
	}

	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("extension %q must look like .prefab", ext)
		}
	}

	return nil
}

func validateSaveConfig(config *SaveConfig) error {
	if config.Indent < 1 || config.Indent > 16 {
		return fmt.Errorf("indent %d is not in valid range 1-16", config.Indent)
	}
	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}

	switch config.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("format %q must be text or json", config.Format)
	}
}

// validatePath rejects empty paths and characters prefab paths may not hold.
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if p == "." {
		return nil
	}
	if !paths.IsValidPath(strings.TrimRight(p, `/\`)) {
		return fmt.Errorf("path contains characters that are not allowed")
	}
	return nil
}

// ProjectRoot returns the absolute, slash-separated project root.
func (c *Config) ProjectRoot() (string, error) {
	if paths.IsAbs(c.Project.Root) {
		return filepath.ToSlash(c.Project.Root), nil
	}
	abs, err := filepath.Abs(c.Project.Root)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeConfigInvalid, "failed to resolve project root")
	}
	return filepath.ToSlash(abs), nil
}

// SourceRoots returns the source roots as absolute paths. Relative roots are
// taken relative to the project root.
func (c *Config) SourceRoots() ([]string, error) {
	root, err := c.ProjectRoot()
	if err != nil {
		return nil, err
	}

	roots := make([]string, 0, len(c.Project.SourceRoots))
	for _, r := range c.Project.SourceRoots {
		r = filepath.ToSlash(r)
		if !paths.IsAbs(r) {
			r = path.Join(root, r)
		}
		roots = append(roots, r)
	}
	return roots, nil
}

// IsPrefabFile reports whether name has one of the configured extensions.
func (c *Config) IsPrefabFile(name string) bool {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(name)))
	for _, e := range c.Loader.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// LoggerConfig converts the logging section into a logger configuration.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Logging.Format
	return lc
}

// CodecOptions returns the codec options implied by the save section.
func (c *Config) CodecOptions() []codec.Option {
	return []codec.Option{codec.WithIndent(c.Save.Indent)}
}

// LoadSchema returns the configured schema, or the built-in one when no
// schema file is set. A relative schema file is read from the project root.
func (c *Config) LoadSchema(fs afero.Fs) (*schema.Schema, error) {
	if c.Schema.File == "" {
		return schema.Default(), nil
	}

	name := filepath.ToSlash(c.Schema.File)
	if !paths.IsAbs(name) {
		root, err := c.ProjectRoot()
		if err != nil {
			return nil, err
		}
		name = path.Join(root, name)
	}

	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "failed to read schema file").WithPath(name)
	}

	s, err := schema.ParseBytes(name, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "invalid schema file").WithPath(name)
	}
	return s, nil
}
