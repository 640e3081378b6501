package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/registry"
	"github.com/conneroisu/prefab/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <path>",
	Aliases: []string{"w"},
	Short:   "Reload a prefab graph whenever one of its files changes",
	Long: `Load a prefab, watch the project's source roots and reload the whole
graph when the content of any prefab in it changes. Templates that load
with errors are reported after every reload.

Examples:
  prefab watch Levels/Town.prefab
  prefab watch Levels/Town.prefab --source-root Assets --source-root Gems`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := args[0]
	load := func(ctx context.Context) (*registry.TemplateRegistry, error) {
		a.collector.Clear()
		reg := a.reset()
		stopTally := tallyEvents(ctx, reg, a.logger)
		_, err := a.loader.LoadFile(ctx, root)
		counts := stopTally()
		a.logger.Debug(ctx, "Registry changes",
			"templates_added", counts[registry.EventTypeTemplateAdded],
			"links_added", counts[registry.EventTypeLinkAdded])
		if err != nil {
			return nil, err
		}
		return reg, nil
	}

	reloader := watcher.NewReloader(a.fs, a.resolver, load, a.logger)
	reloader.OnReload(func(reg *registry.TemplateRegistry) {
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %s: %d template(s), %d link(s), %d problem(s)\n",
			root, reg.Count(), reg.LinkCount(), len(a.collector.Errors()))
	})
	if err := reloader.Init(ctx); err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(watcher.ExtensionFilter(a.cfg.Loader.Extensions...))
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(reloader.Handle)

	roots, err := a.cfg.SourceRoots()
	if err != nil {
		return err
	}
	for _, r := range roots {
		if err := fw.AddRecursive(r); err != nil {
			a.logger.Warn(ctx, err, "Cannot watch source root", "root", r)
		}
	}

	if err := fw.Start(ctx); err != nil {
		return err
	}
	a.logger.Info(ctx, "Watching for changes", "roots", roots)

	<-ctx.Done()
	return nil
}

// tallyEvents counts the events reg emits, logging each at debug level,
// until the returned function is called.
func tallyEvents(ctx context.Context, reg *registry.TemplateRegistry, logger logging.Logger) func() map[registry.EventType]int {
	events := reg.Watch()
	counts := make(map[registry.EventType]int)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range events {
			counts[e.Type]++
			logger.Debug(ctx, "Registry event", "type", e.Type.String(), "path", e.Path)
		}
	}()

	return func() map[registry.EventType]int {
		reg.UnWatch(events)
		<-done
		return counts
	}
}
