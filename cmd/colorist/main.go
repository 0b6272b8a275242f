// Command colorist drives the colorist image tool: one-off conversions,
// thumbnails, a directory watcher and an HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/Skryldev/colorist"
	"github.com/Skryldev/colorist/config"
	"github.com/Skryldev/colorist/core"
	"github.com/Skryldev/colorist/hooks"
)

// app carries what every sub-command needs once the config is loaded.
type app struct {
	configFile string
	strict     bool
	bin        string
	sets       []string
	force      bool

	cfg     config.Config
	proc    *colorist.Processor
	logger  core.Logger
	metrics *hooks.InMemoryMetrics
	closeFn func()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "colorist",
		Short:         "Convert images with the colorist tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "configuration file (yaml, toml or json)")
	pf.BoolVar(&a.strict, "strict", false, "reject unknown and invalid options")
	pf.StringVar(&a.bin, "bin", "", "colorist executable")
	pf.StringArrayVarP(&a.sets, "set", "s", nil, "option as key=value, repeatable")

	root.AddCommand(
		a.identifyCmd(),
		a.convertCmd(),
		a.formatCmd(),
		a.processCmd(),
		a.thumbCmd(),
		a.generateCmd(),
		a.optionsCmd(),
		a.configCmd(),
		a.serveCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) setup(*cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.strict {
		cfg.Strict = true
	}
	if a.bin != "" {
		cfg.Bin = a.bin
	}
	a.cfg = cfg

	logger, closeFn, err := hooks.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger, a.closeFn = logger, closeFn

	opts := []colorist.Option{colorist.WithLogger(logger)}
	if cfg.Identifier == "vips" {
		id, shutdown, err := vipsIdentifier(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, colorist.WithIdentifier(id))
		a.closeFn = func() {
			shutdown()
			closeFn()
		}
	}
	proc, err := colorist.New(cfg, opts...)
	if err != nil {
		return err
	}
	a.metrics = hooks.NewInMemoryMetrics()
	proc.SetMetrics(a.metrics)
	proc.AddHook(hooks.NewLoggingHook(logger))
	proc.AddHook(hooks.NewMetricsHook(a.metrics))
	a.proc = proc

	return nil
}

func (a *app) teardown() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// options parses the --set flags.  Values are coerced to bool or number when
// they look like one; everything else stays a string.
func (a *app) options() (map[string]any, error) {
	out := make(map[string]any, len(a.sets))
	for _, kv := range a.sets {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		out[strings.ToLower(k)] = coerce(strings.TrimSpace(v))
	}
	return out, nil
}

func coerce(v string) any {
	if i, err := cast.ToIntE(v); err == nil && !strings.ContainsAny(v, ".eE") {
		return i
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f
	}
	switch strings.ToLower(v) {
	case "true", "false":
		return cast.ToBool(v)
	}
	return v
}
