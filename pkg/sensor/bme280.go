package sensor

import (
	"context"
	"fmt"
	"strings"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/ericogr/pyrologger/pkg/config"
)

// BME280Driver reads humidity and temperature from a Bosch BME280 on I²C.
// A BMP280 on the same address only reports temperature.
type BME280Driver struct {
	dev         *bmxx80.Dev
	bus         i2c.BusCloser
	hasHumidity bool
}

func NewBME280Driver(cfg config.ClimateConfig) (ClimateDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	dev, err := bmxx80.NewI2C(bus, uint16(cfg.I2CAddress), &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280 init: %w", err)
	}
	return &BME280Driver{
		dev:         dev,
		bus:         bus,
		hasHumidity: strings.HasPrefix(dev.String(), "BME280"),
	}, nil
}

func (d *BME280Driver) Read(ctx context.Context) (Climate, error) {
	if err := ctx.Err(); err != nil {
		return Climate{}, err
	}
	var e physic.Env
	if err := d.dev.Sense(&e); err != nil {
		return Climate{}, fmt.Errorf("bme280 sense: %w", err)
	}
	c := Climate{
		Temperature:    e.Temperature.Celsius(),
		HasTemperature: true,
	}
	if d.hasHumidity {
		c.Humidity = float64(e.Humidity) / float64(physic.PercentRH)
		c.HasHumidity = true
	}
	return c, nil
}

func (d *BME280Driver) Close() error {
	if d.dev != nil {
		_ = d.dev.Halt()
	}
	if d.bus != nil {
		return d.bus.Close()
	}
	return nil
}
