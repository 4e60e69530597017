package pyranometer

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ericogr/pyrologger/pkg/sensor"
)

// MicromolesPerWatt converts photon flux (µmol m⁻² s⁻¹) to irradiance
// (W m⁻²) for sunlight.
const MicromolesPerWatt = 4.6

// Sensor is a pyranometer with the calibration read from the device when it
// was attached. If the device was absent at that time the sensor stays
// uncalibrated for its whole life and every reading resolves to 0.
type Sensor struct {
	link       *Link
	cal        Calibration
	calibrated bool
	serial     int
	divisor    float64
}

// NewSensor connects to the instrument behind link and reads its serial
// number and calibration. divisor > 0 divides every reading (see
// MicromolesPerWatt).
func NewSensor(link *Link, divisor float64, log logrus.FieldLogger) *Sensor {
	s := &Sensor{link: link, serial: SerialSentinel, divisor: divisor}
	log = log.WithField("port", link.Port())

	if err := link.Connect(); err != nil {
		log.WithError(err).Warn("pyranometer not connected, readings will be uncalibrated")
		return s
	}
	cal, err := link.ReadCalibration()
	if err != nil {
		log.WithError(err).Warn("could not read calibration, readings will be uncalibrated")
	} else {
		s.cal = cal
		s.calibrated = true
	}
	s.serial = link.ReadSerialNumber()
	log.WithFields(logrus.Fields{
		"serial":     s.serial,
		"offset":     s.cal.Offset,
		"multiplier": s.cal.Multiplier,
		"calibrated": s.calibrated,
	}).Info("pyranometer attached")
	return s
}

func (s *Sensor) Port() string { return s.link.Port() }

func (s *Sensor) Serial() int { return s.serial }

// Calibration returns the stored constants and whether they came from the
// device.
func (s *Sensor) Calibration() (Calibration, bool) { return s.cal, s.calibrated }

func (s *Sensor) Close() error { return s.link.Close() }

// CurrentReading returns the present irradiance, or VoltageSentinel when the
// voltage could not be read. Callers must check for the sentinel.
func (s *Sensor) CurrentReading() float64 {
	v := s.link.ReadVoltage()
	if v == VoltageSentinel {
		return VoltageSentinel
	}
	return Irradiance(v, s.cal, s.divisor)
}

// Sample takes one reading and tags it for the batch started at ts.
func (s *Sensor) Sample(ts time.Time) sensor.Reading {
	v := s.CurrentReading()
	status := sensor.StatusOK
	switch {
	case v == VoltageSentinel:
		status = sensor.StatusSentinel
	case !s.calibrated:
		status = sensor.StatusUncalibrated
	}
	return sensor.Reading{
		Kind:      sensor.KindIrradiance,
		Source:    s.link.Port(),
		Value:     v,
		Status:    status,
		Timestamp: ts,
	}
}

// Irradiance applies (v - offset) * multiplier * 1000, clamped at 0, then
// the optional divisor.
func Irradiance(voltage float64, cal Calibration, divisor float64) float64 {
	x := (voltage - float64(cal.Offset)) * float64(cal.Multiplier) * 1000
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	if divisor > 0 {
		x /= divisor
	}
	return x
}
