package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/prefab/internal/registry"
)

var loadCmd = &cobra.Command{
	Use:     "load <path>",
	Aliases: []string{"l"},
	Short:   "Load a prefab and print its template graph",
	Long: `Load a prefab together with every prefab it nests and print the
resulting templates with their links.

Examples:
  prefab load Levels/Town.prefab            # Table output
  prefab load Levels/Town.prefab -o json    # JSON output
  prefab load Levels/Town.prefab -o yaml    # YAML output`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

var loadFlags *OutputFlags

func init() {
	rootCmd.AddCommand(loadCmd)
	loadFlags = AddOutputFlags(loadCmd, FormatTable, FormatJSON, FormatYAML)
}

// templateSummary is the printable form of a registered template.
type templateSummary struct {
	ID         uint64        `json:"id" yaml:"id"`
	Path       string        `json:"path" yaml:"path"`
	Root       bool          `json:"root,omitempty" yaml:"root,omitempty"`
	WithErrors bool          `json:"loaded_with_errors" yaml:"loaded_with_errors"`
	Dirty      bool          `json:"dirty" yaml:"dirty"`
	Hash       string        `json:"hash,omitempty" yaml:"hash,omitempty"`
	Instances  []linkSummary `json:"instances,omitempty" yaml:"instances,omitempty"`
	Dependents []string      `json:"dependents,omitempty" yaml:"dependents,omitempty"`
}

type linkSummary struct {
	Key    string `json:"key" yaml:"key"`
	Source string `json:"source" yaml:"source"`
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	rootID, err := a.loader.LoadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if loadFlags.Quiet {
		return nil
	}

	summaries := summarize(a.registry, rootID)
	return writeSummaries(cmd.OutOrStdout(), loadFlags.Format, summaries)
}

func summarize(reg *registry.TemplateRegistry, rootID registry.TemplateID) []templateSummary {
	all := reg.All()
	out := make([]templateSummary, 0, len(all))

	for _, tmpl := range all {
		s := templateSummary{
			ID:         uint64(tmpl.ID),
			Path:       tmpl.Path,
			Root:       tmpl.ID == rootID,
			WithErrors: tmpl.LoadedWithErrors,
			Dirty:      tmpl.Dirty,
			Hash:       tmpl.Hash,
		}
		for _, dep := range reg.Dependents(tmpl.ID) {
			if d, ok := reg.Find(dep); ok {
				s.Dependents = append(s.Dependents, d.Path)
			}
		}
		for _, linkID := range tmpl.Links {
			link, ok := reg.FindLink(linkID)
			if !ok {
				continue
			}
			source := ""
			if src, ok := reg.Find(link.Source); ok {
				source = src.Path
			}
			s.Instances = append(s.Instances, linkSummary{Key: link.InstanceKey, Source: source})
		}
		out = append(out, s)
	}

	return out
}

func writeSummaries(w io.Writer, format string, summaries []templateSummary) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summaries)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(summaries)
	case FormatTable:
		return writeSummaryTable(w, summaries)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeSummaryTable(w io.Writer, summaries []templateSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tPATH\tINSTANCES\tSTATUS")
	for _, s := range summaries {
		status := "ok"
		if s.WithErrors {
			status = "errors"
		}
		path := s.Path
		if s.Root {
			path += " (root)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.ID, path, len(s.Instances), status)
	}

	return tw.Flush()
}
