// Package delivery ships a session's files to a remote destination once the
// network is reachable. Reachability is retried under a bounded exponential
// backoff; a device that never gets a link gives up and keeps its files for
// the next session.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ericogr/pyrologger/pkg/config"
)

var ErrUnreachable = errors.New("destination unreachable")

type Uploader struct {
	Prober            Prober
	Transfer          Transferer
	Run               Runner
	ConnectCommand    string
	DisconnectCommand string
	ExtraGlobs        []string

	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Clock  clock.Clock
	Logger logrus.FieldLogger
}

// NewUploader builds an Uploader that probes over HTTP and transfers with
// the configured command.
func NewUploader(cfg config.DeliveryConfig, log logrus.FieldLogger) *Uploader {
	return &Uploader{
		Prober: &HTTPProber{
			URL:     cfg.ProbeURL,
			Timeout: time.Duration(cfg.ProbeTimeoutMs) * time.Millisecond,
		},
		Transfer: &CommandTransfer{
			Template:    cfg.Command,
			Destination: cfg.Destination,
		},
		ConnectCommand:    cfg.ConnectCommand,
		DisconnectCommand: cfg.DisconnectCommand,
		ExtraGlobs:        cfg.ExtraGlobs,
		MaxAttempts:       cfg.MaxAttempts,
		InitialInterval:   time.Duration(cfg.InitialIntervalMs) * time.Millisecond,
		MaxInterval:       time.Duration(cfg.MaxIntervalMs) * time.Millisecond,
		Logger:            log,
	}
}

func (u *Uploader) clock() clock.Clock {
	if u.Clock == nil {
		return clock.New()
	}
	return u.Clock
}

func (u *Uploader) log() logrus.FieldLogger {
	if u.Logger == nil {
		return logrus.StandardLogger()
	}
	return u.Logger
}

func (u *Uploader) runner() Runner {
	if u.Run == nil {
		return ExecRunner
	}
	return u.Run
}

// Deliver brings the link up, waits for reachability and transfers files
// followed by whatever ExtraGlobs match. Individual transfer failures do not
// stop the remaining transfers; they are combined in the returned error.
func (u *Uploader) Deliver(ctx context.Context, files []string) error {
	log := u.log()

	if u.ConnectCommand != "" {
		if err := u.runCommand(ctx, u.ConnectCommand); err != nil {
			log.WithError(err).Warn("connect command failed")
		}
	}
	if u.DisconnectCommand != "" {
		defer func() {
			if err := u.runCommand(context.Background(), u.DisconnectCommand); err != nil {
				log.WithError(err).Warn("disconnect command failed")
			}
		}()
	}

	if err := u.waitReachable(ctx); err != nil {
		log.WithError(err).Error("destination unreachable, files kept for a later session")
		return err
	}

	var errs error
	for _, f := range u.withExtras(files) {
		if err := u.Transfer.Transfer(ctx, f); err != nil {
			log.WithError(err).WithField("file", f).Error("transfer failed")
			errs = multierr.Append(errs, err)
			continue
		}
		log.WithField("file", f).Info("transferred")
	}
	return errs
}

func (u *Uploader) waitReachable(ctx context.Context) error {
	attempts := u.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	if u.InitialInterval > 0 {
		exp.InitialInterval = u.InitialInterval
	}
	if u.MaxInterval > 0 {
		exp.MaxInterval = u.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Clock = u.clock()
	exp.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
	notify := func(err error, next time.Duration) {
		u.log().WithError(err).WithField("retryIn", next).Debug("destination not reachable yet")
	}
	err := backoff.RetryNotifyWithTimer(func() error { return u.Prober.Probe(ctx) }, b, notify, &clockTimer{clk: u.clock()})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (u *Uploader) runCommand(ctx context.Context, command string) error {
	argv, err := Command(command, nil)
	if err != nil {
		return err
	}
	out, err := u.runner()(ctx, argv[0], argv[1:]...)
	if len(out) > 0 {
		u.log().WithField("command", argv[0]).Debug(string(out))
	}
	return err
}

func (u *Uploader) withExtras(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range files {
		add(f)
	}
	for _, pattern := range u.ExtraGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			u.log().WithError(err).WithField("pattern", pattern).Warn("bad glob")
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out
}

// clockTimer drives backoff waits from a clock.Clock.
type clockTimer struct {
	clk   clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clk.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time { return t.timer.C }
