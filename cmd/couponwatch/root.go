package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"couponwatch/internal/app"
	"couponwatch/internal/config"
	"couponwatch/internal/extract"
	"couponwatch/internal/textextract"
	logx "couponwatch/pkg/logx"
)

type rootOptions struct {
	configPath string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "couponwatch",
		Short: "Watch coupon feeds and alert on new codes",
		Long: `couponwatch polls RSS/Atom feeds, picks entries that mention a coupon,
extracts the code and sends one alert per new link.

Example usage:
  couponwatch                          # one pass with ./config.yaml
  couponwatch --dry-run                # print alerts, keep the store untouched
  couponwatch daemon                   # scheduled passes with hot reload
  couponwatch check --probe            # validate config and fetch every source`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath, "path to config (yaml or json)")
	cmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "print alerts to stdout and do not persist seen links")

	cmd.AddCommand(
		newRunCmd(opts),
		newDaemonCmd(opts),
		newCheckCmd(opts),
		newExtractCmd(),
	)
	return cmd
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app.App, error) {
	return app.New(opts.configPath, app.Options{DryRun: opts.dryRun, Stdout: cmd.OutOrStdout()})
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}
}

func runOnce(cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	a.Logger().Info("done",
		logx.Int("alerts", rep.Notified),
		logx.Int("failed", rep.DeliveryFailed),
		logx.Int("sources_failed", rep.SourcesFailed),
	)
	return nil
}

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run passes on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Daemon(cmd.Context())
		},
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and list the effective sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// check never notifies and never writes the store
			a, err := app.New(opts.configPath, app.Options{DryRun: true, Stdout: io.Discard, Logger: logx.Nop()})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			s := a.Settings()
			fmt.Fprintf(out, "config ok: sink=%s store=%s schedule=%q\n", s.Notify.Sink, s.Dedupe.Driver, s.Schedule.Spec)
			if !probe {
				for _, src := range s.Feeds.Sources {
					fmt.Fprintf(out, "  %s\n", sourceLine(src.URL, src.Name))
				}
				return nil
			}

			failed := 0
			for _, r := range a.Probe(cmd.Context()) {
				if r.OK() {
					fmt.Fprintf(out, "  ok    %s (%d entries, %d rejected, %s)\n",
						sourceLine(r.Source.URL, r.Title), r.Entries, r.Rejected, r.Elapsed.Round(time.Millisecond))
					continue
				}
				failed++
				fmt.Fprintf(out, "  fail  %s: %v\n", r.Source.URL, r.Err)
			}
			if failed > 0 {
				return fmt.Errorf("%d source(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "fetch every source once")
	return cmd
}

func sourceLine(url, name string) string {
	if strings.TrimSpace(name) == "" {
		return url
	}
	return name + " <" + url + ">"
}

func newExtractCmd() *cobra.Command {
	var (
		loose    bool
		stoplist []string
	)
	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Run the code extractor on text or HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			b, err := io.ReadAll(r)
			if err != nil {
				return err
			}

			ex := extract.New(extract.Options{RequireMixed: !loose, Stoplist: stoplist})
			res := ex.Extract(textextract.HTML{}.Text(string(b)))
			if !res.Found() {
				fmt.Fprintln(cmd.OutOrStdout(), "no code")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.Code, res.Tier)
			return nil
		},
	}
	cmd.Flags().BoolVar(&loose, "loose", false, "accept shape matches without a digit")
	cmd.Flags().StringSliceVar(&stoplist, "stop", nil, "extra stoplist words")
	return cmd
}
