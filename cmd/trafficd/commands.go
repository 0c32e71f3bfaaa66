package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/timfallmk/traffic-watcher/internal/config"
	"github.com/timfallmk/traffic-watcher/internal/daemon"
	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/report"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in foreground mode",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			service, err := a.newService()
			if err != nil {
				return err
			}
			if err := service.Run(); err != nil {
				return fmt.Errorf("failed to run service: %w", err)
			}
			return nil
		},
	}
}

// newServiceCmd wraps one system service operation.
func newServiceCmd(a *app, use, short string, aliases []string, op func(*daemon.Service) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := a.newService()
			if err != nil {
				return err
			}
			status, err := op(service)
			if err != nil {
				return fmt.Errorf("failed to %s service: %w", use, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if write != "" {
				if err := a.cfg.SaveConfig(write); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", write)
				return nil
			}
			return showConfiguration(cmd.OutOrStdout(), a.configPath, a.cfg)
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "write the effective configuration to this path")

	return cmd
}

func showConfiguration(w io.Writer, path string, cfg *config.Config) error {
	shown := *cfg
	if shown.Telegram.BotToken != "" {
		shown.Telegram.BotToken = "********"
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(w, "# source: %s\n", path)
	fmt.Fprintf(w, "# limits: daily %s, weekly %s, monthly %s\n",
		format.Bytes(config.ThresholdBytes(cfg.Thresholds.DailyGB)),
		format.Bytes(config.ThresholdBytes(cfg.Thresholds.WeeklyGB)),
		format.Bytes(config.ThresholdBytes(cfg.Thresholds.MonthlyGB)))
	_, err = w.Write(data)
	return err
}

func newReportCmd(a *app) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:       "report daily|weekly|monthly",
		Short:     "Build one report and print or send it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(report.Daily), string(report.Weekly), string(report.Monthly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := report.ParseKind(args[0])
			if err != nil {
				return err
			}

			service, err := a.newService()
			if err != nil {
				return err
			}
			if err := service.Initialize(); err != nil {
				return err
			}
			defer service.Stop()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if send {
				if err := service.Reporter().Send(ctx, kind); err != nil {
					return fmt.Errorf("failed to send %s report: %w", kind, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s report sent\n", kind)
				return nil
			}

			text, err := service.Reporter().Build(ctx, kind)
			if err != nil {
				return fmt.Errorf("failed to build %s report: %w", kind, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "deliver the report to the configured chat")

	return cmd
}

// printSink writes notifications to the command output instead of a chat.
type printSink struct {
	w io.Writer
}

func (s printSink) Send(_ context.Context, destination, text string) error {
	if destination == "" {
		destination = "-"
	}
	_, err := fmt.Fprintf(s.w, "[%s] %s\n", destination, text)
	return err
}

func newCheckCmd(a *app) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one alert check and print the alerts that fired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var extra []daemon.Option
			if !send {
				extra = append(extra, daemon.WithSink(printSink{w: cmd.OutOrStdout()}))
			}

			service, err := a.newService(extra...)
			if err != nil {
				return err
			}
			if err := service.Initialize(); err != nil {
				return err
			}
			defer service.Stop()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			fired := service.Alerts().Tick(ctx)
			if len(fired) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No thresholds exceeded")
				return nil
			}

			var failed []string
			for _, al := range fired {
				if !al.Delivered() {
					failed = append(failed, fmt.Sprintf("%s: %v", al.Kind, al.Err))
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("alert delivery failed: %s", strings.Join(failed, "; "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "deliver alerts to the configured chat")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", name, version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build time: %s\n", buildTime)
		},
	}
}
