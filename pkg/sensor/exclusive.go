package sensor

import (
	"context"
	"sync"
)

// exclusive serialises Read and Close of the wrapped driver. A read that the
// sampler abandoned after its deadline may still be running when the
// session closes the driver; Close then waits for it.
type exclusive struct {
	mu  sync.Mutex
	drv ClimateDriver
}

// Exclusive wraps drv so that Close never overlaps a Read.
func Exclusive(drv ClimateDriver) ClimateDriver {
	if _, ok := drv.(*exclusive); ok {
		return drv
	}
	return &exclusive{drv: drv}
}

func (e *exclusive) Read(ctx context.Context) (Climate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drv.Read(ctx)
}

func (e *exclusive) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drv.Close()
}
