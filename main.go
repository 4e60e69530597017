package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/ericogr/pyrologger/pkg/config"
	"github.com/ericogr/pyrologger/pkg/delivery"
	"github.com/ericogr/pyrologger/pkg/hwid"
	"github.com/ericogr/pyrologger/pkg/logging"
	"github.com/ericogr/pyrologger/pkg/output"
	"github.com/ericogr/pyrologger/pkg/output/console"
	"github.com/ericogr/pyrologger/pkg/output/mqtt"
	"github.com/ericogr/pyrologger/pkg/session"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	var flags *config.Flags
	cmd := &cobra.Command{
		Use:   "pyrologger",
		Short: "Sample humidity, temperature and irradiance once, store and deliver the files",
		Long: `pyrologger runs one logging session: it samples the humidity/temperature
sensor and every configured pyranometer, writes <day>_ht.bson and
<day>_pyr.bson under a directory named after the board serial number,
delivers the files when a network is reachable and then shuts down.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			runSession(cmd.Context(), cfg)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the JSON config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags = config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newProbeCommand(func() (config.Config, error) { return loadConfig(flags) }),
		newInspectCommand(),
	)
	return cmd
}

func loadConfig(flags *config.Flags) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := flags.Apply(&cfg); err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := logging.SetLevel(logrus.StandardLogger(), cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runSession never fails the process: the board is powered by a timer and
// an error exit would change nothing.
func runSession(ctx context.Context, cfg config.Config) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.StandardLogger()
	clk := clock.New()

	logFile, closer := openLogFile(cfg, log, session.DayOfYear(clk.Now()))
	if closer != nil {
		defer closer.Close()
	}
	log.Info("====================================")
	log.Info("starting to log temperature, humidity and irradiance")

	outputs, err := initOutputs(cfg, log)
	if err != nil {
		log.WithError(err).Warn("some outputs are unavailable")
	}

	s := &session.Session{
		Config:  cfg,
		Clock:   clk,
		Logger:  log,
		Outputs: outputs,
		LogFile: logFile,
	}
	if cfg.Delivery.Enabled {
		u := delivery.NewUploader(cfg.Delivery, log)
		u.Clock = clk
		s.Uploader = u
	}

	res, err := s.Run(ctx)
	switch {
	case errors.Is(err, session.ErrFatalPrecondition):
		log.WithError(err).Error("session not started")
	case err != nil:
		log.WithError(err).WithField("files", res.Files).Warn("session finished with errors")
	default:
		log.WithField("files", res.Files).Info("session finished")
	}
}

// openLogFile tees log into the day's log file. A board without a readable
// hardware serial cannot run a session, so it leaves no file behind and logs
// to stdout only.
func openLogFile(cfg config.Config, log *logrus.Logger, day string) (string, io.Closer) {
	if _, err := hwid.CPUSerial(cfg.CPUInfoPath); err != nil {
		log.WithError(err).Warn("logging to stdout only")
		return "", nil
	}
	path, closer, err := logging.Setup(log, cfg.LogDir, day)
	if err != nil {
		log.WithError(err).Warn("logging to stdout only")
		return "", nil
	}
	return path, closer
}

// initOutputs builds every configured output. Outputs that cannot be created
// are left out and their errors combined.
func initOutputs(cfg config.Config, log logrus.FieldLogger) ([]output.Output, error) {
	var (
		outs []output.Output
		errs error
	)
	for _, o := range cfg.Outputs {
		switch o.Type {
		case "console":
			outs = append(outs, console.NewConsole())
		case "mqtt":
			if o.MQTT == nil {
				errs = multierr.Append(errs, fmt.Errorf("mqtt output without mqtt config"))
				continue
			}
			m, err := mqtt.NewMQTT(*o.MQTT, log)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			outs = append(outs, m)
		default:
			errs = multierr.Append(errs, fmt.Errorf("unknown output type %q", o.Type))
		}
	}
	return outs, errs
}
