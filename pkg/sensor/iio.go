package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	iioHumidityFile    = "in_humidityrelative_input"
	iioTemperatureFile = "in_temp_input"
)

// IIODriver reads a DHT22 through the Linux dht11 IIO driver
// (dtoverlay=dht11,gpiopin=27). Values are exposed in milli-units and a
// failed conversion surfaces as EIO or ETIMEDOUT on read.
type IIODriver struct {
	dir string
}

func NewIIODriver(dir string) (ClimateDriver, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("iio device: %w", err)
	}
	return &IIODriver{dir: dir}, nil
}

func (d *IIODriver) Read(ctx context.Context) (Climate, error) {
	if err := ctx.Err(); err != nil {
		return Climate{}, err
	}
	var c Climate
	var lastErr error
	if v, err := readMilli(filepath.Join(d.dir, iioHumidityFile)); err == nil {
		c.Humidity, c.HasHumidity = v, true
	} else {
		lastErr = err
	}
	if v, err := readMilli(filepath.Join(d.dir, iioTemperatureFile)); err == nil {
		c.Temperature, c.HasTemperature = v, true
	} else {
		lastErr = err
	}
	if !c.HasHumidity && !c.HasTemperature {
		return c, fmt.Errorf("iio read: %w", lastErr)
	}
	return c, nil
}

func (d *IIODriver) Close() error { return nil }

func readMilli(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return float64(v) / 1000.0, nil
}
