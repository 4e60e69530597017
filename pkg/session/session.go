// Package session runs one power-on cycle of the logger: sample every
// sensor, persist the batches under a per-board directory, publish the
// readings, deliver the files and hand over to the shutdown hook.
package session

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ericogr/pyrologger/pkg/config"
	"github.com/ericogr/pyrologger/pkg/delivery"
	"github.com/ericogr/pyrologger/pkg/hwid"
	"github.com/ericogr/pyrologger/pkg/output"
	"github.com/ericogr/pyrologger/pkg/pyranometer"
	"github.com/ericogr/pyrologger/pkg/record"
	"github.com/ericogr/pyrologger/pkg/sampler"
	"github.com/ericogr/pyrologger/pkg/sensor"
)

// ErrFatalPrecondition means the session could not start: nothing was
// sampled and nothing was written.
var ErrFatalPrecondition = errors.New("fatal precondition")

// Deliverer ships files off the device.
type Deliverer interface {
	Deliver(ctx context.Context, files []string) error
}

// Session holds everything one run needs. Only Config is required; the
// other fields default to the real hardware.
type Session struct {
	Config config.Config
	Clock  clock.Clock
	Logger logrus.FieldLogger

	// NewClimateDriver defaults to sensor.NewClimateDriver.
	NewClimateDriver func(config.ClimateConfig) (sensor.ClimateDriver, error)
	// Opener defaults to the one selected by Config.Pyranometers.SerialDriver.
	Opener pyranometer.Opener

	Outputs  []output.Output
	Uploader Deliverer
	// LogFile is delivered together with the data files when set.
	LogFile string
	// RunCommand executes the shutdown command.
	RunCommand delivery.Runner
}

// Result describes what a session produced.
type Result struct {
	DataDir    string
	Day        string
	Files      []string
	Climate    sampler.ClimateBatch
	Irradiance sampler.IrradianceBatch
	Delivered  bool
}

// DayOfYear is the file base name for a session started at t.
func DayOfYear(t time.Time) string { return strconv.Itoa(t.YearDay()) }

func (s *Session) clock() clock.Clock {
	if s.Clock == nil {
		return clock.New()
	}
	return s.Clock
}

func (s *Session) log() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

func (s *Session) sampler() *sampler.Sampler {
	smp := sampler.New(s.Config.PointCount, s.Config.SleepInterval())
	smp.Clock = s.clock()
	smp.Logger = s.log()
	smp.MaxRetries = s.Config.Climate.MaxRetries
	return smp
}

// Run executes the session. A non-nil error wrapping ErrFatalPrecondition
// means nothing was done. Any other error collects problems of an otherwise
// completed session (aborted sampling, failed delivery, close errors); the
// files that could be written are listed in the Result either way.
func (s *Session) Run(ctx context.Context) (Result, error) {
	log := s.log()
	var res Result

	serial, err := hwid.CPUSerial(s.Config.CPUInfoPath)
	if err != nil {
		return res, pkgerrors.Wrapf(ErrFatalPrecondition, "%v", err)
	}
	res.DataDir = hwid.DataDir(s.Config.DataDirPrefix, serial)
	if err := ensureDir(res.DataDir, log); err != nil {
		return res, pkgerrors.Wrapf(ErrFatalPrecondition, "%v", err)
	}

	started := s.clock().Now()
	res.Day = DayOfYear(started)
	log = log.WithField("day", res.Day)
	log.WithFields(s.Config.LogrusFields()).Info("session started")

	var errs error
	smp := s.sampler()

	climatePath, err := s.runClimate(ctx, smp, started, &res)
	errs = multierr.Append(errs, err)
	if climatePath != "" {
		res.Files = append(res.Files, climatePath)
	}

	pyrPath, err := s.runPyranometers(ctx, smp, started, &res)
	errs = multierr.Append(errs, err)
	if pyrPath != "" {
		res.Files = append(res.Files, pyrPath)
	}

	readings := append(res.Climate.Readings(), res.Irradiance.Readings()...)
	for _, out := range s.Outputs {
		if err := out.Publish(readings); err != nil {
			log.WithError(err).Error("output publish failed")
		}
	}

	if s.Uploader != nil {
		files := append([]string(nil), res.Files...)
		if s.LogFile != "" {
			files = append(files, s.LogFile)
		}
		if err := s.Uploader.Deliver(ctx, files); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			res.Delivered = true
		}
	}

	for _, out := range s.Outputs {
		if err := out.Close(); err != nil {
			log.WithError(err).Warn("closing output")
			errs = multierr.Append(errs, err)
		}
	}

	s.shutdown(ctx)
	return res, errs
}

func (s *Session) runClimate(ctx context.Context, smp *sampler.Sampler, started time.Time, res *Result) (string, error) {
	log := s.log()
	newDriver := s.NewClimateDriver
	if newDriver == nil {
		newDriver = sensor.NewClimateDriver
	}
	drv, err := newDriver(s.Config.Climate)
	switch {
	case err != nil:
		log.WithError(err).Error("humidity sensor unavailable, recording missing values")
		drv = sensor.UnavailableDriver{Err: err}
	case drv == nil:
		log.Info("no humidity sensor configured")
		return "", nil
	}
	drv = sensor.Exclusive(drv)
	defer drv.Close()

	batch, sampleErr := smp.SampleClimate(ctx, started, drv)
	res.Climate = batch
	if sampleErr != nil {
		log.WithError(sampleErr).WithField("points", batch.Len()).Warn("humidity sampling aborted, writing partial batch")
	}

	path, err := record.Write(res.DataDir, record.ClimateFileName(res.Day), record.NewClimateRecord(batch))
	if err != nil {
		log.WithError(err).Error("could not write humidity file")
		return "", multierr.Append(sampleErr, err)
	}
	log.WithFields(logrus.Fields{"file": path, "points": batch.Len()}).Info("humidity file written")
	return path, sampleErr
}

func (s *Session) runPyranometers(ctx context.Context, smp *sampler.Sampler, started time.Time, res *Result) (string, error) {
	log := s.log()
	cfg := s.Config.Pyranometers
	if len(cfg.Ports) == 0 {
		log.Info("no pyranometers configured")
		return "", nil
	}
	open := s.Opener
	if open == nil {
		var err error
		if open, err = pyranometer.OpenerFor(cfg.SerialDriver); err != nil {
			return "", err
		}
	}

	divisor := 0.0
	if len(cfg.Ports) > 1 {
		divisor = cfg.UnitDivisor
	}
	sensors := make([]*pyranometer.Sensor, 0, len(cfg.Ports))
	instruments := make([]sampler.Instrument, 0, len(cfg.Ports))
	for _, port := range cfg.Ports {
		link := pyranometer.NewLink(port, open, cfg.BaudRate, cfg.ReadTimeout())
		sn := pyranometer.NewSensor(link, divisor, log)
		sensors = append(sensors, sn)
		instruments = append(instruments, sn)
	}

	batch, errs := smp.SampleIrradiance(ctx, started, instruments)
	res.Irradiance = batch
	if errs != nil {
		log.WithError(errs).Warn("pyranometer sampling interrupted, writing partial batch")
	}
	for _, sn := range sensors {
		if err := sn.Close(); err != nil {
			log.WithError(err).WithField("port", sn.Port()).Warn("closing pyranometer port")
			errs = multierr.Append(errs, err)
		}
	}

	rec := record.IrradianceRecord{Started: started}
	for i, sn := range sensors {
		cal, ok := sn.Calibration()
		rec.Instruments = append(rec.Instruments, record.Instrument{
			Port:       sn.Port(),
			Serial:     sn.Serial(),
			Offset:     cal.Offset,
			Multiplier: cal.Multiplier,
			Calibrated: ok,
			Irradiance: batch.Series[i].Values(),
		})
	}
	path, err := record.Write(res.DataDir, record.IrradianceFileName(res.Day), rec)
	if err != nil {
		log.WithError(err).Error("could not write pyranometer file")
		return "", multierr.Append(errs, err)
	}
	log.WithField("file", path).Info("pyranometer file written")
	return path, errs
}

func (s *Session) shutdown(ctx context.Context) {
	log := s.log()
	if s.Config.ShutdownCommand == "" {
		log.Info("pretend shutdown")
		return
	}
	argv, err := delivery.Command(s.Config.ShutdownCommand, nil)
	if err != nil {
		log.WithError(err).Error("bad shutdown command")
		return
	}
	run := s.RunCommand
	if run == nil {
		run = delivery.ExecRunner
	}
	log.WithField("command", s.Config.ShutdownCommand).Info("shutting down")
	if out, err := run(ctx, argv[0], argv[1:]...); err != nil {
		log.WithError(err).WithField("output", string(out)).Error("shutdown command failed")
	}
}

func ensureDir(dir string, log logrus.FieldLogger) error {
	if _, err := os.Stat(dir); err == nil {
		log.WithField("dir", dir).Info("found data directory")
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrap(err, "create data directory")
	}
	log.WithField("dir", dir).Info("created data directory")
	return nil
}
