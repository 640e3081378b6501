// Package cmd provides the command-line interface for prefab.
//
// This package implements the CLI commands using the Cobra framework. Every
// command loads the configuration through Viper, builds a template registry
// and a loader for the configured project, and then loads or saves prefab
// documents.
//
// # Available Commands
//
//   - load: Load a prefab and print its template graph
//   - collapse: Print the on-disk form of a loaded prefab
//   - resave: Load prefabs and write them back
//   - validate: Load prefabs and report every problem found
//   - new: Write an empty prefab
//   - watch: Reload a prefab graph whenever one of its files changes
//   - version: Show build information
//
// # Command Examples
//
//	// Show the graph of a level as YAML
//	prefab load Levels/Town.prefab -o yaml
//
//	// Normalize formatting and default values of two prefabs
//	prefab resave Props/Door.prefab Props/Window.prefab
//
//	// Check a prefab in CI
//	prefab validate Levels/Town.prefab --output json
//
// # Configuration
//
// Settings come from .prefab.yml, the file named by --config or
// PREFAB_CONFIG_FILE, and PREFAB_<SECTION>_<KEY> environment variables.
package cmd
