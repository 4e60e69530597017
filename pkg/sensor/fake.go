package sensor

import (
	"context"
	"math/rand"
	"sync"
)

// FakeDriver produces plausible humidity/temperature values without hardware.
type FakeDriver struct {
	mu sync.Mutex
}

func NewFakeDriver() ClimateDriver {
	return &FakeDriver{}
}

func (f *FakeDriver) Read(ctx context.Context) (Climate, error) {
	if err := ctx.Err(); err != nil {
		return Climate{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// simulate 30..70 %RH and 10..30 °C
	return Climate{
		Humidity:       30 + rand.Float64()*40,
		Temperature:    10 + rand.Float64()*20,
		HasHumidity:    true,
		HasTemperature: true,
	}, nil
}

func (f *FakeDriver) Close() error { return nil }
