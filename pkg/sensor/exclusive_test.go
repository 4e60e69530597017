package sensor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// slowDriver reports whether Close ran while a Read was in progress.
type slowDriver struct {
	reading atomic.Bool
	overlap atomic.Bool
	delay   time.Duration
}

func (d *slowDriver) Read(context.Context) (Climate, error) {
	d.reading.Store(true)
	time.Sleep(d.delay)
	d.reading.Store(false)
	return Climate{}, nil
}

func (d *slowDriver) Close() error {
	if d.reading.Load() {
		d.overlap.Store(true)
	}
	return nil
}

func TestExclusiveCloseWaitsForRead(t *testing.T) {
	inner := &slowDriver{delay: 50 * time.Millisecond}
	drv := Exclusive(inner)

	go func() { _, _ = drv.Read(context.Background()) }()
	for !inner.reading.Load() {
		time.Sleep(time.Millisecond)
	}
	if err := drv.Close(); err != nil {
		t.Fatal(err)
	}
	if inner.overlap.Load() {
		t.Fatal("Close ran while Read was in flight")
	}
}

func TestExclusiveIsIdempotent(t *testing.T) {
	drv := Exclusive(NewFakeDriver())
	if Exclusive(drv) != drv {
		t.Fatal("wrapping twice should return the same driver")
	}
}

func TestUnavailableDriver(t *testing.T) {
	c, err := UnavailableDriver{Err: context.DeadlineExceeded}.Read(context.Background())
	if err == nil || c.HasHumidity || c.HasTemperature {
		t.Fatalf("got %+v, %v", c, err)
	}
}
