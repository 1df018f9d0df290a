// Command sbom-sunburst visualizes the dependency tree of an SBOM, colored by
// vulnerability severity.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ritzau/sbom-sunburst/pkg/config"
	"github.com/ritzau/sbom-sunburst/pkg/decompose"
	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/sunburst"
)

var errNoInput = errors.New("no input: set --input or --sbom with --service-url")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app carries the configuration resolved before any subcommand runs.
type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "sbom-sunburst",
		Short:         "Visualize an SBOM dependency tree as a severity colored sunburst",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (.toml or .yaml), default sbom-sunburst.toml in the working directory")
	flags.String("input", "", "saved decomposition JSON to visualize")
	flags.String("service-url", "", "base URL of the SBOM decomposition service")
	flags.String("sbom", "", "CycloneDX SBOM (.json or .xml) to decompose at startup")
	flags.Int("max-depth", sunburst.DefaultMaxDepth, "deepest ring drawn, the root being depth 0")
	flags.Bool("only-vulnerable", true, "ask the service to keep only vulnerable branches")
	flags.String("verbosity", "", "log level: trace, debug, info, warn, error")
	flags.CountP("verbose", "v", "increase log verbosity (repeatable)")
	flags.String("log-format", string(logging.FormatCompact), "log format: compact or json")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd.Flags(), a.configFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
		if err != nil {
			return err
		}
		if err := logging.Setup(os.Stderr, logging.Format(cfg.LogFormat), level); err != nil {
			return err
		}

		a.cfg = cfg
		return nil
	}

	cmd.AddCommand(newServeCommand(a), newTreeCommand(a), newResolveCommand(a))
	return cmd
}

// loadDecomposition reads the configured input. It returns nil without error
// when nothing is configured.
func (a *app) loadDecomposition(ctx context.Context) (*model.Decomposition, error) {
	switch {
	case a.cfg.Input != "":
		return decompose.LoadFile(a.cfg.Input)
	case a.cfg.SBOM != "":
		opts, err := decompose.NewFileOptions(a.cfg.SBOM, a.cfg.OnlyVulnerable, a.cfg.MaxDepth)
		if err != nil {
			return nil, err
		}
		return decompose.NewClient(a.cfg.ServiceURL).Decompose(ctx, opts)
	default:
		return nil, nil
	}
}

// requireDecomposition is loadDecomposition for commands that cannot run without data.
func (a *app) requireDecomposition(ctx context.Context) (*model.Decomposition, error) {
	d, err := a.loadDecomposition(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errNoInput
	}
	if !d.HasGraph() {
		return nil, fmt.Errorf("decomposition has no dependency graph")
	}
	return d, nil
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
