package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/prefab/internal/version"
)

var (
	versionFlags    *OutputFlags
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for prefab including the version, git
commit, build time, Go version and target platform.

Examples:
  prefab version              # Show version
  prefab version --detailed   # Show detailed version info
  prefab version -o json      # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionFlags = AddOutputFlags(versionCmd, FormatText, FormatJSON, FormatYAML)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	switch versionFlags.Format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(version.GetBuildInfo())
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(version.GetBuildInfo())
	default:
		return outputVersionText(w)
	}
}

func outputVersionText(w io.Writer) error {
	switch {
	case versionShort:
		_, err := fmt.Fprintln(w, version.GetShortVersion())
		return err
	case versionDetailed:
		_, err := fmt.Fprintln(w, version.GetDetailedVersion())
		return err
	}

	info := version.GetBuildInfo()
	fmt.Fprintf(w, "%s %s", version.Name, info.Version)
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
	}
	if info.Dirty {
		fmt.Fprint(w, " (dirty)")
	}
	_, err := fmt.Fprintf(w, " %s %s\n", info.GoVersion, info.Platform)
	return err
}
