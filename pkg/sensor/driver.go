package sensor

import (
	"fmt"

	"github.com/ericogr/pyrologger/pkg/config"
)

// NewClimateDriver builds the driver selected by cfg.Driver. A nil driver
// with a nil error means no humidity sensor is fitted. Returned drivers are
// safe to Close while a Read is in flight.
func NewClimateDriver(cfg config.ClimateConfig) (ClimateDriver, error) {
	var (
		drv ClimateDriver
		err error
	)
	switch cfg.Driver {
	case "iio":
		drv, err = NewIIODriver(cfg.IIODevice)
	case "bme280":
		drv, err = NewBME280Driver(cfg)
	case "simulation":
		drv = NewFakeDriver()
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown climate driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return Exclusive(drv), nil
}
