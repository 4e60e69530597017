package record

import (
	"github.com/montanaflynn/stats"

	"github.com/ericogr/pyrologger/pkg/pyranometer"
	"github.com/ericogr/pyrologger/pkg/sensor"
)

// Summary describes one series with failed reads left out.
type Summary struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Skipped int     `json:"skipped"`
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"stddev"`
}

// Summarize computes statistics over values, skipping every value in
// sentinels. A series with nothing left has Count 0 and zero statistics.
func Summarize(name string, values []float64, sentinels ...float64) Summary {
	kept := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if isSentinel(v, sentinels) {
			continue
		}
		kept = append(kept, v)
	}
	s := Summary{Name: name, Count: len(kept), Skipped: len(values) - len(kept)}
	if len(kept) == 0 {
		return s
	}
	s.Mean, _ = kept.Mean()
	s.Min, _ = kept.Min()
	s.Max, _ = kept.Max()
	s.StdDev, _ = kept.StandardDeviation()
	return s
}

func isSentinel(v float64, sentinels []float64) bool {
	for _, s := range sentinels {
		if v == s {
			return true
		}
	}
	return false
}

func (r ClimateRecord) Summaries() []Summary {
	rh := make([]float64, len(r.Pairs))
	t := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		rh[i], t[i] = p.RH, p.T
	}
	return []Summary{
		Summarize(string(sensor.KindHumidity), rh, sensor.MissingValue),
		Summarize(string(sensor.KindTemperature), t, sensor.MissingValue),
	}
}

func (r IrradianceRecord) Summaries() []Summary {
	out := make([]Summary, 0, len(r.Instruments))
	for _, in := range r.Instruments {
		out = append(out, Summarize(in.Port, in.Irradiance, pyranometer.VoltageSentinel))
	}
	return out
}
