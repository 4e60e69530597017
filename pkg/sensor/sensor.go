package sensor

import (
	"context"
	"time"
)

// Kind identifies the physical quantity of a Reading.
type Kind string

const (
	KindHumidity    Kind = "humidity"
	KindTemperature Kind = "temperature"
	KindIrradiance  Kind = "irradiance"
)

// Status qualifies a Reading's value.
type Status string

const (
	StatusOK Status = "ok"
	// StatusSentinel marks a failed read recorded as an out-of-domain value.
	StatusSentinel Status = "sentinel"
	// StatusUncalibrated marks a value from an instrument whose calibration
	// could not be read; the value is a placeholder 0.
	StatusUncalibrated Status = "uncalibrated"
)

// MissingValue is recorded when humidity or temperature could not be read.
const MissingValue = -9999.0

// Reading is one sample. Timestamp is the start of the batch the sample
// belongs to, not the instant of the individual read.
type Reading struct {
	Kind      Kind      `json:"kind"`
	Source    string    `json:"source"`
	Value     float64   `json:"value"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Climate is one humidity/temperature read. Either value may be missing.
type Climate struct {
	Humidity       float64
	Temperature    float64
	HasHumidity    bool
	HasTemperature bool
}

func (c Climate) Complete() bool { return c.HasHumidity && c.HasTemperature }

// ClimateDriver performs a single blocking humidity/temperature read. A read
// abandoned after a timeout may still be running when Close is called; wrap
// drivers that cannot cope with that in Exclusive.
type ClimateDriver interface {
	Read(ctx context.Context) (Climate, error)
	Close() error
}
