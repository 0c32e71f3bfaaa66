package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/timfallmk/traffic-watcher/internal/config"
	"github.com/timfallmk/traffic-watcher/internal/daemon"
)

const name = "trafficd"

var (
	// These are set by the build system via -ldflags.
	version   = "dev"     // Set via -X main.version=...
	buildTime = "unknown" // Set via -X main.buildTime=...
)

// app carries the state shared by every subcommand.
type app struct {
	out io.Writer

	configPath string
	envFile    string
	iface      string
	logLevel   string
	listen     string

	cfg  *config.Config
	opts []daemon.Option
}

func main() {
	if err := newRootCmd(&app{out: os.Stdout}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   name,
		Short: "Network interface traffic reporter with usage alerts",
		Long: `trafficd reads interface counters from vnstat, serves them over an HTTP API,
alerts once per period when daily, weekly or monthly usage crosses a limit and
sends scheduled reports to a Telegram chat.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfiguration()
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to configuration file")
	flags.StringVar(&a.envFile, "env-file", "", "path to a .env file (default ./.env when present)")
	flags.StringVar(&a.iface, "interface", "", "network interface to monitor")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.listen, "listen", "", "HTTP listen address")

	root.AddCommand(
		newRunCmd(a),
		newServiceCmd(a, "install", "Install the daemon as a system service", nil, (*daemon.Service).Install),
		newServiceCmd(a, "remove", "Remove the daemon service", []string{"uninstall"}, (*daemon.Service).Remove),
		newServiceCmd(a, "start", "Start the installed daemon service", nil, (*daemon.Service).StartService),
		newServiceCmd(a, "stop", "Stop the running daemon service", nil, (*daemon.Service).StopService),
		newServiceCmd(a, "status", "Show the daemon service status", nil, (*daemon.Service).Status),
		newConfigCmd(a),
		newReportCmd(a),
		newCheckCmd(a),
		newVersionCmd(),
	)

	return root
}

func (a *app) loadConfiguration() error {
	if a.configPath == "" {
		if path, err := config.FindConfig(); err == nil {
			a.configPath = path
		} else {
			log.Printf("No configuration file found, using defaults")
		}
	}

	cfg, warnings, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	for _, w := range warnings {
		log.Print(w)
	}

	a.applyCommandLineOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	return nil
}

func (a *app) applyCommandLineOverrides(cfg *config.Config) {
	if a.iface != "" {
		cfg.Interface = a.iface
	}

	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	if a.listen != "" {
		cfg.HTTP.Listen = a.listen
	}
}

func (a *app) newService(extra ...daemon.Option) (*daemon.Service, error) {
	opts := []daemon.Option{daemon.WithConfigPath(a.configPath), daemon.WithEnvFile(a.envFile)}
	opts = append(opts, a.opts...)
	opts = append(opts, extra...)

	service, err := daemon.NewService(a.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return service, nil
}
