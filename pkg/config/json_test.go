package config

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalConfigJSON(t *testing.T) {
	js := `{
        "point_count": 60,
        "sleep_interval_ms": 1000,
        "climate": {"driver": "bme280", "i2c_bus": "1", "i2c_address": 119, "max_retries": 100},
        "pyranometers": {"ports": ["/dev/ttyACM0", "/dev/ttyACM1"], "baud_rate": 115200, "read_timeout_ms": 500, "serial_driver": "tarm", "unit_divisor": 4.6},
        "delivery": {"enabled": true, "destination": "pi@server:/data/2018/", "max_attempts": 10},
        "outputs": [{"type":"console"}, {"type":"mqtt","mqtt":{"server":"tcp://localhost:1883","state_topic":"pyro"}}]
    }`

	cfg := DefaultConfig()
	if err := json.Unmarshal([]byte(js), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.PointCount != 60 {
		t.Fatalf("point_count: got %d", cfg.PointCount)
	}
	if cfg.Climate.Driver != "bme280" || cfg.Climate.I2CAddress != 119 {
		t.Fatalf("climate: %+v", cfg.Climate)
	}
	if len(cfg.Pyranometers.Ports) != 2 || cfg.Pyranometers.SerialDriver != "tarm" {
		t.Fatalf("pyranometers: %+v", cfg.Pyranometers)
	}
	if cfg.Delivery.ProbeURL == "" || cfg.Delivery.Command == "" {
		t.Fatalf("delivery defaults should survive a partial object: %+v", cfg.Delivery)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].MQTT.StateTopic != "pyro" {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
