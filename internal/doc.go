// Package internal contains the implementation packages of the prefab tool.
//
// # Package Organization
//
//   - document: Ordered JSON-like values and JSON Pointers
//   - codec: Reading and writing documents as JSON or YAML
//   - paths: Project-relative path canonicalization
//   - errors: Coded errors, diagnostics and suggestions
//   - logging: Structured logging on log/slog
//   - schema: Entity schema and instantiation with defaults
//   - normalize: Expanding and stripping default values
//   - registry: Templates, links and their dependency graph
//   - prefab: Loading nested prefabs and saving them back
//   - config: Viper-backed configuration
//   - watcher: File watching and graph reloading
//   - version: Build information
//   - testutils: Shared test fixtures
//
// # Data Flow
//
// The loader resolves a path through paths, decodes it with codec, expands
// it through normalize and records it in registry. Every instance entry is
// loaded the same way and linked to its source template. The saver runs the
// same steps in reverse.
package internal
