package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/prefab/internal/errors"
)

var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Load prefabs and report every problem found",
	Long: `Load each prefab with all of its nested prefabs and report:

- Invalid instance paths and entries
- Missing or unreadable nested prefabs
- Parse errors
- Prefabs that nest themselves
- Values that do not match the schema

The command exits with a non-zero status when any error is found.

Examples:
  prefab validate Levels/Town.prefab
  prefab validate Levels/*.prefab --output json
  prefab validate Levels/Town.prefab --suggest`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

var (
	validateFlags   *OutputFlags
	validateSuggest bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateFlags = AddOutputFlags(validateCmd, FormatText, FormatJSON)
	validateCmd.Flags().BoolVar(&validateSuggest, "suggest", false, "print suggestions for each error")
}

// ValidationResult is the machine-readable outcome of a validate run.
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	Templates   int                 `json:"templates"`
	Diagnostics []diagnosticSummary `json:"diagnostics"`
	Cycles      [][]string          `json:"cycles,omitempty"`
}

type diagnosticSummary struct {
	Severity   string `json:"severity"`
	Code       string `json:"code"`
	Path       string `json:"path,omitempty"`
	Instance   string `json:"instance,omitempty"`
	NestedPath string `json:"nested_path,omitempty"`
	Message    string `json:"message"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	for _, p := range args {
		// Root failures are already in the collector.
		_, _ = a.loader.LoadFile(cmd.Context(), p)
	}

	result := buildValidationResult(a)

	if !validateFlags.Quiet {
		if err := writeValidationResult(cmd.OutOrStdout(), validateFlags.Format, result, a.collector); err != nil {
			return err
		}
	}

	if !result.Valid {
		return fmt.Errorf("validation failed: %d problem(s) found", countErrors(result))
	}
	return nil
}

func buildValidationResult(a *app) *ValidationResult {
	result := &ValidationResult{
		Templates:   a.registry.Count(),
		Diagnostics: []diagnosticSummary{},
		Cycles:      a.registry.DetectCycles(),
	}

	for _, d := range a.collector.Diagnostics() {
		if d.Err == nil {
			continue
		}
		result.Diagnostics = append(result.Diagnostics, diagnosticSummary{
			Severity:   d.Severity.String(),
			Code:       errors.CodeOf(d.Err),
			Path:       d.Path,
			Instance:   d.Instance,
			NestedPath: d.NestedPath,
			Message:    d.Err.Error(),
		})
	}

	result.Valid = !a.collector.HasErrors() && len(result.Cycles) == 0
	return result
}

func countErrors(result *ValidationResult) int {
	n := len(result.Cycles)
	for _, d := range result.Diagnostics {
		if d.Severity == errors.SeverityError.String() || d.Severity == errors.SeverityFatal.String() {
			n++
		}
	}
	return n
}

func writeValidationResult(w io.Writer, format string, result *ValidationResult, collector *errors.Collector) error {
	if strings.EqualFold(format, FormatJSON) {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	for _, d := range collector.Diagnostics() {
		fmt.Fprintln(w, d.Error())
		if validateSuggest {
			if s := errors.FormatSuggestions("Suggestions:", errors.Suggestions(d.Err)); s != "" {
				fmt.Fprint(w, s)
			}
		}
	}
	for _, cycle := range result.Cycles {
		fmt.Fprintf(w, "cycle: %s\n", strings.Join(cycle, " -> "))
	}

	if result.Valid {
		fmt.Fprintf(w, "%d template(s) valid\n", result.Templates)
	} else {
		fmt.Fprintf(w, "%d template(s) loaded, %d problem(s)\n", result.Templates, countErrors(result))
	}
	return nil
}
