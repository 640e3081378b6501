package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/prefab/internal/config"
	"github.com/conneroisu/prefab/internal/errors"
	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/normalize"
	"github.com/conneroisu/prefab/internal/paths"
	"github.com/conneroisu/prefab/internal/prefab"
	"github.com/conneroisu/prefab/internal/registry"
	"github.com/conneroisu/prefab/internal/schema"
)

var cfgFile string

// appFs is the file system every command reads from and writes to.
var appFs = afero.NewOsFs()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prefab",
	Short: "Load, validate and save nested prefab documents",
	Long: `prefab loads prefab documents together with every prefab they nest,
reports broken references and cycles, and writes documents back in their
canonical on-disk form.

Quick Start:
  prefab load Levels/Town.prefab       Print the template graph
  prefab validate Levels/Town.prefab   Report problems, exit non-zero on errors
  prefab resave Props/Door.prefab      Rewrite a prefab in canonical form
  prefab new Props/Crate.prefab        Write an empty prefab`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .prefab.yml, can also use PREFAB_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("project", ".", "project root that relative prefab paths resolve against")
	rootCmd.PersistentFlags().StringSlice("source-root", nil, "source root to search for prefabs (repeatable)")

	bindFlag("logging.level", "log-level")
	bindFlag("project.root", "project")
	bindFlag("project.source_roots", "source-root")
}

func bindFlag(key, name string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. PREFAB_CONFIG_FILE environment variable
//  3. .prefab.yml in the current directory
//
// Every key can also be set with a PREFAB_ environment variable, for
// example PREFAB_LOADER_MAX_DEPTH=16.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PREFAB_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".prefab")
	}

	config.BindEnv(viper.GetViper())
	config.SetDefaults(viper.GetViper())
	viper.SetFs(appFs)

	// A missing or unreadable config file falls back to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// app bundles what a command needs to load and save prefabs.
type app struct {
	cfg       *config.Config
	fs        afero.Fs
	logger    logging.Logger
	collector *errors.Collector
	resolver  *paths.Resolver
	normalize *normalize.Normalizer
	registry  *registry.TemplateRegistry
	loader    *prefab.Loader
}

// newApp loads the configuration and builds a loader over a fresh registry.
// Logs go to the command's error stream.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	lc.Component = "cli"
	logger := logging.NewLogger(lc)

	root, err := cfg.ProjectRoot()
	if err != nil {
		return nil, err
	}
	sourceRoots, err := cfg.SourceRoots()
	if err != nil {
		return nil, err
	}

	s, err := cfg.LoadSchema(appFs)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		fs:        appFs,
		logger:    logger,
		collector: errors.NewCollector(),
		resolver:  paths.NewResolver(root, paths.NewRootLookup(appFs, sourceRoots...)),
		normalize: normalize.New(schema.NewInstantiator(s)),
	}
	a.reset()
	return a, nil
}

// reset replaces the registry and loader with empty ones.
func (a *app) reset() *registry.TemplateRegistry {
	a.registry = registry.NewTemplateRegistry()
	a.loader = prefab.NewLoader(a.registry, a.resolver, a.normalize, a.fs,
		prefab.WithLogger(a.logger),
		prefab.WithCollector(a.collector),
		prefab.WithMaxDepth(a.cfg.Loader.MaxDepth),
		prefab.WithCodecOptions(a.cfg.CodecOptions()...),
	)
	return a.registry
}
