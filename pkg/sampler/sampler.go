// Package sampler runs the fixed-cadence acquisition loops.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/ericogr/pyrologger/pkg/sensor"
)

// ErrTimeoutAbort is returned, together with the partial batch, when one
// sampling attempt outlives its deadline.
var ErrTimeoutAbort = errors.New("sampling attempt timed out")

const DefaultMaxRetries = 100

// Instrument is one pyranometer as seen by the loop.
type Instrument interface {
	Port() string
	Sample(ts time.Time) sensor.Reading
}

type Sampler struct {
	Clock      clock.Clock
	Logger     logrus.FieldLogger
	PointCount int
	Interval   time.Duration
	// MaxRetries bounds the driver reads spent on one climate point.
	MaxRetries int
	// AttemptTimeout bounds one climate point including its retries.
	// Zero means 2 seconds per requested point.
	AttemptTimeout time.Duration
}

func New(points int, interval time.Duration) *Sampler {
	return &Sampler{
		Clock:      clock.New(),
		Logger:     logrus.StandardLogger(),
		PointCount: points,
		Interval:   interval,
		MaxRetries: DefaultMaxRetries,
	}
}

func (s *Sampler) clock() clock.Clock {
	if s.Clock == nil {
		return clock.New()
	}
	return s.Clock
}

func (s *Sampler) log() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

func (s *Sampler) attemptTimeout() time.Duration {
	if s.AttemptTimeout > 0 {
		return s.AttemptTimeout
	}
	return time.Duration(2*s.PointCount) * time.Second
}

func (s *Sampler) maxRetries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return DefaultMaxRetries
}

// SampleClimate collects PointCount humidity/temperature pairs. Values still
// missing after MaxRetries reads are recorded as sensor.MissingValue. If an
// attempt times out or ctx ends, the points gathered so far are returned
// with the error.
func (s *Sampler) SampleClimate(ctx context.Context, started time.Time, drv sensor.ClimateDriver) (ClimateBatch, error) {
	batch := ClimateBatch{
		Started:     started,
		Source:      "climate",
		Humidity:    make([]float64, 0, s.PointCount),
		Temperature: make([]float64, 0, s.PointCount),
	}
	for i := 0; i < s.PointCount; i++ {
		c, err := s.attempt(ctx, drv)
		if err != nil {
			s.log().WithError(err).WithField("collected", batch.Len()).Warn("did not log sensor data, stopping")
			return batch, err
		}
		rh, t := sensor.MissingValue, sensor.MissingValue
		if c.HasHumidity {
			rh = c.Humidity
		} else {
			s.log().Infof("logged a bad RH value: %v", sensor.MissingValue)
		}
		if c.HasTemperature {
			t = c.Temperature
		} else {
			s.log().Infof("logged a bad T value: %v", sensor.MissingValue)
		}
		batch.Humidity = append(batch.Humidity, rh)
		batch.Temperature = append(batch.Temperature, t)

		if err := s.sleep(ctx); err != nil {
			return batch, err
		}
	}
	return batch, nil
}

// attempt runs one retrying read under its own deadline. The wait on the
// deadline does not depend on the driver honouring ctx.
func (s *Sampler) attempt(ctx context.Context, drv sensor.ClimateDriver) (sensor.Climate, error) {
	timeout := s.attemptTimeout()
	actx, cancel := s.clock().WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan sensor.Climate, 1)
	go func() { done <- s.readWithRetry(actx, drv) }()

	select {
	case c := <-done:
		return c, nil
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return sensor.Climate{}, err
		}
		return sensor.Climate{}, fmt.Errorf("%w after %s", ErrTimeoutAbort, timeout)
	}
}

func (s *Sampler) readWithRetry(ctx context.Context, drv sensor.ClimateDriver) sensor.Climate {
	var last sensor.Climate
	for n := 0; n < s.maxRetries() && ctx.Err() == nil; n++ {
		c, err := drv.Read(ctx)
		if err != nil {
			s.log().WithError(err).Debug("climate read failed")
			last = sensor.Climate{}
			continue
		}
		last = c
		if c.Complete() {
			break
		}
	}
	return last
}

// SampleIrradiance reads every instrument once per round, in order, for
// PointCount rounds. All readings carry the batch start time.
func (s *Sampler) SampleIrradiance(ctx context.Context, started time.Time, instruments []Instrument) (IrradianceBatch, error) {
	batch := IrradianceBatch{Started: started, Series: make([]Series, len(instruments))}
	for j, inst := range instruments {
		batch.Series[j] = Series{Source: inst.Port(), Readings: make([]sensor.Reading, 0, s.PointCount)}
	}
	for i := 0; i < s.PointCount; i++ {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		for j, inst := range instruments {
			r := inst.Sample(started)
			if r.Status == sensor.StatusSentinel {
				s.log().WithField("port", inst.Port()).Warn("pyranometer voltage read failed")
			}
			batch.Series[j].Readings = append(batch.Series[j].Readings, r)
		}
		if err := s.sleep(ctx); err != nil {
			return batch, err
		}
	}
	return batch, nil
}

func (s *Sampler) sleep(ctx context.Context) error {
	if s.Interval <= 0 {
		return ctx.Err()
	}
	select {
	case <-s.clock().After(s.Interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
