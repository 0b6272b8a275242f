package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"code.cloudfoundry.org/bytefmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/Skryldev/colorist/core"
	"github.com/Skryldev/colorist/server"
	"github.com/Skryldev/colorist/watch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *core.Result) {
	if res.Skipped {
		fmt.Fprintf(w, "skip  %s\n", res.Destination)
		return
	}
	fmt.Fprintf(w, "wrote %s (%s, %s)\n", res.Destination, bytefmt.ByteSize(uint64(res.Bytes)), res.Duration.Round(1e6))
}

func (a *app) identifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify PATH",
		Short: "Print dimensions, depth and profile of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.proc.Identify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), id)
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert SRC DST",
		Short: "Convert SRC to DST with the --set options",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			res, err := a.proc.Inner().Convert(cmd.Context(), core.Request{
				Source:      args[0],
				Destination: args[1],
				Options:     opts,
				Force:       a.force,
			})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&a.force, "force", "f", false, "overwrite an existing destination")
	return cmd
}

func (a *app) formatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format SRC [FORMAT...]",
		Short: "Write format siblings of SRC (default: configured formats)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.proc.ToFormats(cmd.Context(), args[0], args[1:]...)
			for _, res := range results {
				if res != nil {
					printResult(cmd.OutOrStdout(), res)
				}
			}
			return err
		},
	}
}

func (a *app) processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process PATH",
		Short: "Apply the --set options to PATH in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			applied, err := a.proc.Process(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), applied)
		},
	}
}

func (a *app) thumbCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "thumb SRC",
		Short: "Write a thumbnail of SRC named after the --set options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			if dryRun {
				dst, err := a.proc.ThumbPath(args[0], opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dst)
				return nil
			}
			res, err := a.proc.Thumb(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the thumbnail path only")
	return cmd
}

func (a *app) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate DST...",
		Short: "Run the job files recorded for DST",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, dst := range args {
				res, err := a.proc.Generate(cmd.Context(), dst)
				if err != nil {
					a.logger.Error("generate", "destination", dst, "error", err.Error())
					failed++
					continue
				}
				printResult(cmd.OutOrStdout(), res)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) optionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the recognised options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFLAG\tGROUP\tKIND\tDOMAIN\tDEFAULT")
			for _, s := range a.proc.Registry().Specs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.Name, dash(s.Flag), s.Group, s.Kind, domain(s), dash(cast.ToString(s.Default)))
			}
			return tw.Flush()
		},
	}
}

func domain(s core.OptionSpec) string {
	switch {
	case len(s.Values) > 0:
		return strings.Join(s.Values, "|")
	case s.Kind == core.KindIntRange:
		return fmt.Sprintf("%g..%g", s.Min, s.Max)
	}
	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cfg.Dump(cmd.OutOrStdout())
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr, root string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve identify, format and thumbnail requests over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Server
			if addr != "" {
				sc.Addr = addr
			}
			if root != "" {
				sc.Root = root
			}
			srv := server.New(a.proc, sc.Root, a.logger, a.metrics)
			return srv.ListenAndServe(cmd.Context(), sc.Addr, sc.ReadTimeout, sc.WriteTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&root, "root", "", "directory served (default from config)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var formats []string
	cmd := &cobra.Command{
		Use:   "watch [DIR...]",
		Short: "Convert images written to DIR into the watch formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc := a.cfg.Watch
			if len(args) > 0 {
				wc.Dirs = args
			}
			if len(formats) > 0 {
				wc.Formats = formats
			}
			if len(wc.Dirs) == 0 {
				return fmt.Errorf("no directory to watch")
			}
			w, err := watch.New(a.proc, wc, a.logger)
			if err != nil {
				return err
			}
			if err := w.Start(cmd.Context()); err != nil {
				return err
			}
			defer w.Stop()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev := <-w.Events():
					for _, res := range ev.Results {
						if res != nil {
							printResult(cmd.OutOrStdout(), res)
						}
					}
				}
			}
		},
	}
	cmd.Flags().StringSliceVar(&formats, "format", nil, "target formats (default from config)")
	return cmd
}
