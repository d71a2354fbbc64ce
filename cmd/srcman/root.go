package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/config"
	"github.com/tphakala/go-audio-srcmanager/internal/convert"
	"github.com/tphakala/go-audio-srcmanager/internal/simdops"
	"github.com/tphakala/go-audio-srcmanager/internal/telemetry"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	telemetry  bool

	cfg *config.File
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "srcman",
		Short:         "Multichannel sample-rate conversion manager",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetHelpCommand(&cobra.Command{Hidden: true})

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Configuration file (default "+config.DefaultConfigFile+" if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides the configuration)")
	root.PersistentFlags().BoolVar(&a.telemetry, "telemetry", false,
		"Serve manager statistics over WebSocket on /ws")

	root.AddCommand(newConvertCmd(a), newPlayCmd(a), newConfigCmd(a))
	return root
}

// load reads the configuration and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("telemetry") {
		cfg.Telemetry.Enabled = a.telemetry
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logrus.New()
	a.log.SetOutput(os.Stderr)
	a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	a.log.SetLevel(cfg.Level())

	a.log.WithField("simd", simdops.Describe()).Debug("cpu features")
	return nil
}

// newManager builds a manager for mc, wiring telemetry when enabled. The
// returned stop function shuts telemetry down; the caller closes the
// manager.
func (a *app) newManager(ctx context.Context, mc srcmanager.Config) (*srcmanager.Manager, func(), error) {
	opts := []srcmanager.Option{srcmanager.WithLogger(a.log)}

	var hub *telemetry.Hub
	if a.cfg.Telemetry.Enabled {
		hub = telemetry.NewHub(a.log)
		opts = append(opts,
			srcmanager.WithFaultHandler(hub.PublishFault),
			srcmanager.WithRateHandler(hub.PublishRates),
		)
	}

	factory := convert.NewFactory(a.cfg.ConverterKind(), a.cfg.SRC.SettleTicks)
	m, err := srcmanager.New(mc, factory, opts...)
	if err != nil {
		if hub != nil {
			_ = hub.Close()
		}
		return nil, nil, err
	}

	if hub == nil {
		return m, func() {}, nil
	}

	tctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := hub.ListenAndServe(tctx, a.cfg.Telemetry.Addr); err != nil {
			a.log.WithError(err).Error("telemetry server stopped")
		}
	}()
	go hub.Report(tctx, m, a.cfg.Telemetry.Interval)

	return m, func() {
		cancel()
		_ = hub.Close()
	}, nil
}
