package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

type MQTTConfig struct {
	Server         string `json:"server"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	ClientID       string `json:"client_id"`
	StateTopic     string `json:"state_topic"`
	DiscoveryTopic string `json:"discovery_topic,omitempty"`
	DiscoveryName  string `json:"discovery_name,omitempty"`
}

type OutputConfig struct {
	Type string      `json:"type"`
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

// ClimateConfig selects the humidity/temperature driver.
type ClimateConfig struct {
	// Driver is one of "iio", "bme280" or "simulation".
	Driver     string `json:"driver"`
	IIODevice  string `json:"iio_device"`
	I2CBus     string `json:"i2c_bus"`
	I2CAddress int    `json:"i2c_address"`
	MaxRetries int    `json:"max_retries"`
}

type PyranometerConfig struct {
	Ports         []string `json:"ports"`
	BaudRate      int      `json:"baud_rate"`
	ReadTimeoutMs int      `json:"read_timeout_ms"`
	// SerialDriver is "termios" (jacobsa/go-serial) or "tarm".
	SerialDriver string `json:"serial_driver"`
	// UnitDivisor converts µmol m⁻² s⁻¹ to W m⁻² when more than one
	// instrument is attached.
	UnitDivisor float64 `json:"unit_divisor"`
}

type DeliveryConfig struct {
	Enabled           bool     `json:"enabled"`
	Destination       string   `json:"destination"`
	Command           string   `json:"command"`
	ConnectCommand    string   `json:"connect_command,omitempty"`
	DisconnectCommand string   `json:"disconnect_command,omitempty"`
	ProbeURL          string   `json:"probe_url"`
	ProbeTimeoutMs    int      `json:"probe_timeout_ms"`
	MaxAttempts       int      `json:"max_attempts"`
	InitialIntervalMs int      `json:"initial_interval_ms"`
	MaxIntervalMs     int      `json:"max_interval_ms"`
	ExtraGlobs        []string `json:"extra_globs,omitempty"`
}

type Config struct {
	PointCount      int               `json:"point_count"`
	SleepIntervalMs int               `json:"sleep_interval_ms"`
	DataDirPrefix   string            `json:"data_dir_prefix"`
	CPUInfoPath     string            `json:"cpuinfo_path"`
	LogDir          string            `json:"log_dir"`
	LogLevel        string            `json:"log_level"`
	Climate         ClimateConfig     `json:"climate"`
	Pyranometers    PyranometerConfig `json:"pyranometers"`
	Delivery        DeliveryConfig    `json:"delivery"`
	Outputs         []OutputConfig    `json:"outputs"`
	ShutdownCommand string            `json:"shutdown_command,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		PointCount:      5,
		SleepIntervalMs: 100,
		DataDirPrefix:   "/home/pi/DATA_",
		CPUInfoPath:     "/proc/cpuinfo",
		LogDir:          ".",
		LogLevel:        "debug",
		Climate: ClimateConfig{
			Driver:     "iio",
			IIODevice:  "/sys/bus/iio/devices/iio:device0",
			I2CBus:     "1",
			I2CAddress: 0x76,
			MaxRetries: 100,
		},
		Pyranometers: PyranometerConfig{
			Ports:         []string{"/dev/ttyACM0"},
			BaudRate:      115200,
			ReadTimeoutMs: 500,
			SerialDriver:  "termios",
			UnitDivisor:   4.6,
		},
		Delivery: DeliveryConfig{
			Command:           "rsync -vahz --partial --inplace {src} {dst}",
			ProbeURL:          "http://216.58.192.142",
			ProbeTimeoutMs:    5000,
			MaxAttempts:       60,
			InitialIntervalMs: 1000,
			MaxIntervalMs:     10000,
		},
		Outputs: []OutputConfig{{Type: "console"}},
	}
}

func (c Config) SleepInterval() time.Duration {
	return time.Duration(c.SleepIntervalMs) * time.Millisecond
}

func (p PyranometerConfig) ReadTimeout() time.Duration {
	return time.Duration(p.ReadTimeoutMs) * time.Millisecond
}

// Load reads the JSON file at path on top of DefaultConfig. An empty path
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, pkgerrors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, pkgerrors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// Flags holds the command line overrides. Only flags the user actually set
// are applied.
type Flags struct {
	fs *pflag.FlagSet

	pointCount    int
	intervalMs    int
	dataDirPrefix string
	cpuinfoPath   string
	logDir        string
	climateDriver string
	i2cAddress    string
	ports         string
	serialDriver  string
	destination   string
	deliver       bool
	outputs       string
	mqttServer    string
	mqttTopic     string
	mqttClientID  string
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.IntVarP(&f.pointCount, "points", "n", 0, "number of points to record per sensor")
	fs.IntVar(&f.intervalMs, "interval-ms", 0, "delay between samples in milliseconds")
	fs.StringVar(&f.dataDirPrefix, "data-prefix", "", "output directory prefix, the CPU serial is appended")
	fs.StringVar(&f.cpuinfoPath, "cpuinfo", "", "file holding the hardware serial number")
	fs.StringVar(&f.logDir, "log-dir", "", "directory for the per-day log file")
	fs.StringVar(&f.climateDriver, "climate-driver", "", "humidity sensor driver: iio|bme280|simulation")
	fs.StringVar(&f.i2cAddress, "i2c-address", "", "BME280 I2C address (decimal or 0x hex)")
	fs.StringVar(&f.ports, "ports", "", "comma-separated pyranometer serial ports")
	fs.StringVar(&f.serialDriver, "serial-driver", "", "serial backend: termios|tarm")
	fs.StringVar(&f.destination, "destination", "", "remote destination for delivered files")
	fs.BoolVar(&f.deliver, "deliver", false, "deliver files after the session")
	fs.StringVar(&f.outputs, "outputs", "", "comma-separated outputs (console,mqtt)")
	fs.StringVar(&f.mqttServer, "mqtt-server", "", "MQTT server (tcp://host:port)")
	fs.StringVar(&f.mqttTopic, "mqtt-topic", "", "MQTT state topic base")
	fs.StringVar(&f.mqttClientID, "mqtt-client-id", "", "MQTT client id")
	return f
}

// Apply copies every changed flag into cfg.
func (f *Flags) Apply(cfg *Config) error {
	changed := f.fs.Changed
	if changed("points") {
		cfg.PointCount = f.pointCount
	}
	if changed("interval-ms") {
		cfg.SleepIntervalMs = f.intervalMs
	}
	if changed("data-prefix") {
		cfg.DataDirPrefix = f.dataDirPrefix
	}
	if changed("cpuinfo") {
		cfg.CPUInfoPath = f.cpuinfoPath
	}
	if changed("log-dir") {
		cfg.LogDir = f.logDir
	}
	if changed("climate-driver") {
		cfg.Climate.Driver = f.climateDriver
	}
	if changed("i2c-address") {
		v, err := parseIntOrHex(f.i2cAddress)
		if err != nil {
			return pkgerrors.Wrap(err, "i2c-address")
		}
		cfg.Climate.I2CAddress = v
	}
	if changed("ports") {
		cfg.Pyranometers.Ports = parseCSV(f.ports)
	}
	if changed("serial-driver") {
		cfg.Pyranometers.SerialDriver = f.serialDriver
	}
	if changed("destination") {
		cfg.Delivery.Destination = f.destination
	}
	if changed("deliver") {
		cfg.Delivery.Enabled = f.deliver
	}
	if changed("outputs") {
		parts := parseCSV(f.outputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}
	if changed("mqtt-server") || changed("mqtt-topic") || changed("mqtt-client-id") {
		applied := false
		for i := range cfg.Outputs {
			if cfg.Outputs[i].Type != "mqtt" {
				continue
			}
			if cfg.Outputs[i].MQTT == nil {
				cfg.Outputs[i].MQTT = &MQTTConfig{}
			}
			f.applyMQTT(cfg.Outputs[i].MQTT)
			applied = true
		}
		if !applied {
			out := OutputConfig{Type: "mqtt", MQTT: &MQTTConfig{}}
			f.applyMQTT(out.MQTT)
			cfg.Outputs = append(cfg.Outputs, out)
		}
	}
	return nil
}

func (f *Flags) applyMQTT(m *MQTTConfig) {
	if f.fs.Changed("mqtt-server") {
		m.Server = f.mqttServer
	}
	if f.fs.Changed("mqtt-topic") {
		m.StateTopic = f.mqttTopic
	}
	if f.fs.Changed("mqtt-client-id") {
		m.ClientID = f.mqttClientID
	}
}

// Validate rejects values the session cannot run with.
func (c Config) Validate() error {
	if c.PointCount <= 0 {
		return pkgerrors.New("point_count must be > 0")
	}
	if c.SleepIntervalMs < 0 {
		return pkgerrors.New("sleep_interval_ms must be >= 0")
	}
	switch c.Climate.Driver {
	case "iio", "bme280", "simulation", "none":
	default:
		return pkgerrors.Errorf("unknown climate driver %q", c.Climate.Driver)
	}
	if c.Climate.MaxRetries <= 0 {
		return pkgerrors.New("climate.max_retries must be > 0")
	}
	switch c.Pyranometers.SerialDriver {
	case "termios", "tarm":
	default:
		return pkgerrors.Errorf("unknown serial driver %q", c.Pyranometers.SerialDriver)
	}
	if c.Pyranometers.BaudRate <= 0 {
		return pkgerrors.New("pyranometers.baud_rate must be > 0")
	}
	if c.Delivery.Enabled {
		if c.Delivery.Destination == "" {
			return pkgerrors.New("delivery.destination is required when delivery is enabled")
		}
		if c.Delivery.MaxAttempts <= 0 {
			return pkgerrors.New("delivery.max_attempts must be > 0")
		}
	}
	for _, o := range c.Outputs {
		switch o.Type {
		case "console":
		case "mqtt":
			if o.MQTT == nil || o.MQTT.Server == "" {
				return pkgerrors.New("mqtt output requires mqtt.server")
			}
		default:
			return pkgerrors.Errorf("unknown output %q", o.Type)
		}
	}
	return nil
}

func (c Config) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"points":       c.PointCount,
		"intervalMs":   c.SleepIntervalMs,
		"dataPrefix":   c.DataDirPrefix,
		"climate":      c.Climate.Driver,
		"pyranometers": strings.Join(c.Pyranometers.Ports, ","),
		"delivery":     c.Delivery.Enabled,
	}
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
