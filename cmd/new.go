package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/prefab/internal/codec"
	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/errors"
	"github.com/conneroisu/prefab/internal/paths"
)

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Write an empty prefab",
	Long: `Write a prefab holding only an empty container entity. Without a path
a unique Prefab_<uuid>.prefab name is generated in the project root.

Examples:
  prefab new Props/Crate.prefab
  prefab new`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNew,
}

var newForce bool

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().BoolVarP(&newForce, "force", "f", false, "overwrite an existing file")
}

func runNew(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	p := paths.GeneratePath() + ".prefab"
	if len(args) == 1 {
		p = args[0]
	}
	if !a.cfg.IsPrefabFile(p) {
		return errors.Newf(errors.CodeInvalidPath, "%s does not have a prefab extension (%s)", p, strings.Join(a.cfg.Loader.Extensions, ", ")).WithPath(p)
	}

	abs := a.resolver.ToAbsolute(p)
	exists, err := afero.Exists(a.fs, abs)
	if err != nil {
		return err
	}
	if exists && !newForce {
		return errors.Newf(errors.CodeWrite, "%s already exists, use --force to overwrite", abs).WithPath(p)
	}

	content, err := emptyPrefab(p)
	if err != nil {
		return err
	}
	id, err := a.loader.LoadString(cmd.Context(), content, p)
	if err != nil {
		return err
	}
	if err := a.loader.Save(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), abs)
	return nil
}

// emptyPrefab returns a document with a container entity named after p,
// encoded for p's extension.
func emptyPrefab(p string) (string, error) {
	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	doc := document.Map(
		document.Field("ContainerEntity", document.Map(
			document.Field("Id", document.String("ContainerEntity")),
			document.Field("Name", document.String(name)),
		)),
	)

	data, err := codec.ForPath(p).Serialize(doc)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeSerialize, "failed to encode new prefab").WithPath(p)
	}
	return string(data), nil
}
