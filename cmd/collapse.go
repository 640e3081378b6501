package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collapseCmd = &cobra.Command{
	Use:   "collapse <path>",
	Short: "Print the on-disk form of a prefab",
	Long: `Load a prefab and print the document that saving it would write:
default values stripped and nested instances collapsed back to their
source and patches. Nothing is written.

Examples:
  prefab collapse Levels/Town.prefab
  prefab collapse Levels/Town.prefab > Town.preview.prefab`,
	Args: cobra.ExactArgs(1),
	RunE: runCollapse,
}

func init() {
	rootCmd.AddCommand(collapseCmd)
}

func runCollapse(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	id, err := a.loader.LoadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out, err := a.loader.SaveToString(cmd.Context(), id)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}
