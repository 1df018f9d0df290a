package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ritzau/sbom-sunburst/pkg/controller"
	"github.com/ritzau/sbom-sunburst/pkg/decompose"
	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/pubsub"
	"github.com/ritzau/sbom-sunburst/pkg/watcher"
	"github.com/ritzau/sbom-sunburst/pkg/web"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive sunburst chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().Int("port", 8080, "port for the web server")
	cmd.Flags().Bool("watch", false, "reload when the input file changes")
	cmd.Flags().Bool("open", false, "open the chart in a browser")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	publisher := pubsub.NewVisualizationPublisher()
	defer publisher.Close()

	ctrl := controller.New(a.cfg.MaxDepth, publisher)

	d, err := a.loadDecomposition(ctx)
	if err != nil {
		return err
	}
	ctrl.SetDecomposition(d)

	var decomposer web.Decomposer
	if a.cfg.ServiceURL != "" {
		decomposer = decompose.NewClient(a.cfg.ServiceURL)
	} else {
		logging.Info("no decomposition service configured, uploads are disabled")
	}

	if a.cfg.Watch {
		if err := a.watch(ctx, ctrl); err != nil {
			return err
		}
	}

	if a.cfg.OpenBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d", a.cfg.Port))
		}()
	}

	return web.NewServer(ctrl, publisher, decomposer).Start(ctx, a.cfg.Port)
}

// watch reloads the decomposition whenever the configured input changes.
func (a *app) watch(ctx context.Context, ctrl *controller.Controller) error {
	var (
		path string
		kind watcher.ChangeType
	)
	switch {
	case a.cfg.Input != "":
		path, kind = a.cfg.Input, watcher.ChangeTypeDecomposition
	case a.cfg.SBOM != "":
		path, kind = a.cfg.SBOM, watcher.ChangeTypeSBOM
	default:
		logging.Warn("nothing to watch: no input file configured")
		return nil
	}

	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(path, kind); err != nil {
		return err
	}
	fw.Start(ctx)

	debouncer := watcher.NewDebouncer(fw.Events(), 500*time.Millisecond, 5*time.Second)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			analysis := watcher.AnalyzeChanges(event)
			if !analysis.NeedReload {
				continue
			}
			logging.Info("input changed, reloading", "files", analysis.ChangedFiles, "decompose", analysis.NeedDecompose)

			d, err := a.loadDecomposition(ctx)
			if err != nil {
				logging.Error("reload failed, keeping previous data", "error", err)
				continue
			}
			ctrl.SetDecomposition(d)
		}
	}()
	return nil
}
