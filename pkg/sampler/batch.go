package sampler

import (
	"time"

	"github.com/ericogr/pyrologger/pkg/sensor"
)

// ClimateBatch holds paired humidity/temperature samples. Both slices always
// have the same length, which may be shorter than the requested point count
// when sampling was aborted.
type ClimateBatch struct {
	Started     time.Time
	Source      string
	Humidity    []float64
	Temperature []float64
}

func (b ClimateBatch) Len() int { return len(b.Humidity) }

// Readings flattens the batch into tagged readings, humidity then
// temperature for each point.
func (b ClimateBatch) Readings() []sensor.Reading {
	out := make([]sensor.Reading, 0, 2*b.Len())
	for i := range b.Humidity {
		out = append(out,
			climateReading(sensor.KindHumidity, b.Source, b.Humidity[i], b.Started),
			climateReading(sensor.KindTemperature, b.Source, b.Temperature[i], b.Started),
		)
	}
	return out
}

func climateReading(kind sensor.Kind, source string, v float64, ts time.Time) sensor.Reading {
	status := sensor.StatusOK
	if v == sensor.MissingValue {
		status = sensor.StatusSentinel
	}
	return sensor.Reading{Kind: kind, Source: source, Value: v, Status: status, Timestamp: ts}
}

// Series is the ordered output of one pyranometer.
type Series struct {
	Source   string
	Readings []sensor.Reading
}

func (s Series) Values() []float64 {
	out := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		out[i] = r.Value
	}
	return out
}

// IrradianceBatch holds one Series per instrument. Index i of every series
// was taken in the same round.
type IrradianceBatch struct {
	Started time.Time
	Series  []Series
}

func (b IrradianceBatch) Readings() []sensor.Reading {
	var out []sensor.Reading
	for _, s := range b.Series {
		out = append(out, s.Readings...)
	}
	return out
}
