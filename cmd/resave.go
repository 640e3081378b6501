package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/prefab/internal/errors"
)

var resaveCmd = &cobra.Command{
	Use:   "resave <path>...",
	Short: "Load prefabs and write them back",
	Long: `Load each prefab and write it back to the file it came from, in
canonical form. Prefabs that load with errors are still written unless
--strict is given.

With --to the single prefab is written to the given absolute path, which
must name the same file the prefab was loaded from.

Examples:
  prefab resave Props/Door.prefab Props/Window.prefab
  prefab resave Props/Door.prefab --to /game/Assets/Props/Door.prefab`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResave,
}

var (
	resaveTo     string
	resaveStrict bool
)

func init() {
	rootCmd.AddCommand(resaveCmd)

	resaveCmd.Flags().StringVar(&resaveTo, "to", "", "absolute path to save to (single prefab only)")
	resaveCmd.Flags().BoolVar(&resaveStrict, "strict", false, "skip prefabs that loaded with errors")
}

func runResave(cmd *cobra.Command, args []string) error {
	if resaveTo != "" && len(args) != 1 {
		return fmt.Errorf("--to needs exactly one prefab, got %d", len(args))
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var failed []error
	for _, p := range args {
		id, err := a.loader.LoadFile(ctx, p)
		if err != nil {
			failed = append(failed, err)
			continue
		}

		tmpl, _ := a.registry.Find(id)
		if resaveStrict && tmpl.LoadedWithErrors {
			failed = append(failed, errors.Newf(errors.CodeInvalidTemplate, "not saving %s: loaded with errors", tmpl.Path).WithPath(tmpl.Path))
			continue
		}

		if resaveTo != "" {
			err = a.loader.SaveTo(ctx, id, resaveTo)
		} else {
			err = a.loader.Save(ctx, id)
		}
		if err != nil {
			failed = append(failed, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", tmpl.Path)
	}

	return errors.Join(failed...)
}
