package config

import (
	"encoding/json"
	"flag"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

const (
	SensorTypeDevice     = "device"
	SensorTypeADS1115    = "ads1115"
	SensorTypeSimulation = "simulation"

	OutputConsole    = "console"
	OutputMQTT       = "mqtt"
	OutputPrometheus = "prometheus"
)

// MaxScale bounds the scale divisor.
const MaxScale = math.MaxInt32

// scaleNames maps the two calibration variants to their divisors.
var scaleNames = map[string]int{
	"signed16":  32768,
	"shifted12": 2047 * 16,
}

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	StateTopic        string `json:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

type OutputConfig struct {
	Type     string      `json:"type"`
	MQTT     *MQTTConfig `json:"mqtt,omitempty"`
	Textfile string      `json:"textfile,omitempty"`
}

type I2CConfig struct {
	Bus        string `json:"bus"`
	Address    int    `json:"address"`
	Channel    int    `json:"channel"`
	SampleRate int    `json:"sample_rate"`
}

// Scale is the divisor applied to a raw sample. In JSON it may be given as a
// number or as a string accepted by ParseScale.
type Scale int

func (s *Scale) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*s = Scale(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.Wrap(err, "scale")
	}
	v, err := ParseScale(str)
	if err != nil {
		return err
	}
	*s = Scale(v)
	return nil
}

type Config struct {
	Device     string         `json:"device"`
	Scale      Scale          `json:"scale"`
	FullScale  string         `json:"full_scale"`
	SensorType string         `json:"sensor_type"`
	I2C        I2CConfig      `json:"i2c"`
	Outputs    []OutputConfig `json:"outputs"`
	Count      int            `json:"count"`
	IntervalMs int            `json:"interval_ms"`
	LogLevel   string         `json:"log_level"`

	ShowVersion bool `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Device:     "/dev/mypci",
		Scale:      32768,
		FullScale:  "10V",
		SensorType: SensorTypeDevice,
		I2C: I2CConfig{
			Bus:        "1",
			Address:    0x48,
			SampleRate: 128,
		},
		Outputs:    []OutputConfig{{Type: OutputConsole}},
		Count:      1,
		IntervalMs: 1000,
		LogLevel:   "warn",
	}
}

// FullScalePotential parses FullScale ("10V", "4.096V", "500mV"). The range
// must be positive.
func (c Config) FullScalePotential() (physic.ElectricPotential, error) {
	var p physic.ElectricPotential
	if err := p.Set(c.FullScale); err != nil {
		return 0, errors.Wrapf(err, "full scale %q", c.FullScale)
	}
	if p <= 0 {
		return 0, errors.Errorf("full scale %q must be > 0", c.FullScale)
	}
	return p, nil
}

// Load loads configuration from a JSON file (optional) and args. Flags
// override values present in the JSON file.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("mypci-voltage", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	flagDevice := fs.String("device", "", "Device node to read (default /dev/mypci)")
	flagScale := fs.String("scale", "", "Scale divisor: integer, 0x hex, product like 2047*16, signed16 or shifted12")
	flagFullScale := fs.String("full-scale", "", "Full-scale range, e.g. 10V")
	flagSensorType := fs.String("sensor-type", "", "sensor type: device|ads1115|simulation")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus for ads1115 (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address (decimal or 0x hex)")
	flagI2CChannel := fs.Int("i2c-channel", -1, "ADS1115 input channel (0-3)")
	flagSampleRate := fs.Int("sample-rate", -1, "ADS1115 sample rate (SPS)")
	flagOutputs := fs.String("outputs", "", "Comma-separated extra outputs (mqtt,prometheus); console is always on")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic")
	flagDiscovery := fs.String("mqtt-discovery-topic", "", "Home Assistant discovery topic")
	flagTextfile := fs.String("textfile", "", "Prometheus textfile path (node_exporter collector)")
	flagCount := fs.Int("count", -1, "Number of samples to take (0 = until interrupted)")
	flagInterval := fs.Int("interval-ms", -1, "Delay between samples in ms")
	flagLogLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	flagVersion := fs.Bool("version", false, "Print version information and exit")

	cfg := DefaultConfig()
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *flagVersion {
		cfg.ShowVersion = true
		return cfg, nil
	}

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse config")
		}
	}

	if *flagDevice != "" {
		cfg.Device = *flagDevice
	}
	if *flagScale != "" {
		v, err := ParseScale(*flagScale)
		if err != nil {
			return cfg, err
		}
		cfg.Scale = Scale(v)
	}
	if *flagFullScale != "" {
		cfg.FullScale = *flagFullScale
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagI2CBus != "" {
		cfg.I2C.Bus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, errors.Wrap(err, "i2c-address")
		}
		cfg.I2C.Address = v
	}
	if *flagI2CChannel != -1 {
		cfg.I2C.Channel = *flagI2CChannel
	}
	if *flagSampleRate != -1 {
		cfg.I2C.SampleRate = *flagSampleRate
	}
	if *flagOutputs != "" {
		for _, p := range parseCSV(*flagOutputs) {
			if findOutput(cfg.Outputs, p) < 0 {
				cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: p})
			}
		}
	}
	// map mqtt flags into every mqtt output (create one if missing)
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" || *flagDiscovery != "" {
		if findOutput(cfg.Outputs, OutputMQTT) < 0 {
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputMQTT})
		}
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) != OutputMQTT {
				continue
			}
			if cfg.Outputs[i].MQTT == nil {
				cfg.Outputs[i].MQTT = &MQTTConfig{}
			}
			m := cfg.Outputs[i].MQTT
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.StateTopic = *flagTopic
			}
			if *flagDiscovery != "" {
				m.DiscoveryTopic = *flagDiscovery
			}
		}
	}
	if *flagTextfile != "" {
		if findOutput(cfg.Outputs, OutputPrometheus) < 0 {
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputPrometheus})
		}
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) == OutputPrometheus {
				cfg.Outputs[i].Textfile = *flagTextfile
			}
		}
	}
	if *flagCount != -1 {
		cfg.Count = *flagCount
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}

	// console is the voltage line on stdout; it is never optional
	if findOutput(cfg.Outputs, OutputConsole) < 0 {
		cfg.Outputs = append([]OutputConfig{{Type: OutputConsole}}, cfg.Outputs...)
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Device == "" && strings.ToLower(c.SensorType) == SensorTypeDevice {
		return errors.New("device must not be empty")
	}
	if c.Scale <= 0 || c.Scale > MaxScale {
		return errors.Errorf("scale must be in 1..%d", MaxScale)
	}
	if _, err := c.FullScalePotential(); err != nil {
		return err
	}
	switch strings.ToLower(c.SensorType) {
	case SensorTypeDevice, SensorTypeADS1115, SensorTypeSimulation:
	default:
		return errors.Errorf("unknown sensor type %q", c.SensorType)
	}
	if c.Count < 0 {
		return errors.New("count must be >= 0")
	}
	if c.IntervalMs < 0 {
		return errors.New("interval-ms must be >= 0")
	}
	for _, o := range c.Outputs {
		switch strings.ToLower(o.Type) {
		case OutputConsole, OutputMQTT:
		case OutputPrometheus:
			if o.Textfile == "" {
				return errors.New("prometheus output requires a textfile path")
			}
		default:
			return errors.Errorf("unknown output type %q", o.Type)
		}
	}
	return nil
}

// ParseScale accepts a decimal or 0x hex integer, a product of such
// integers ("2047*16"), or one of the names signed16 and shifted12. Every
// factor must be positive and the product must fit in MaxScale.
func ParseScale(s string) (int, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if v, ok := scaleNames[t]; ok {
		return v, nil
	}
	product := 1
	for _, f := range strings.Split(t, "*") {
		v, err := parseIntOrHex(strings.TrimSpace(f))
		if err != nil {
			return 0, errors.Wrapf(err, "invalid scale %q", s)
		}
		if v <= 0 {
			return 0, errors.Errorf("invalid scale %q: factor %d must be > 0", s, v)
		}
		if v > MaxScale || product > MaxScale/v {
			return 0, errors.Errorf("invalid scale %q: exceeds %d", s, MaxScale)
		}
		product *= v
	}
	return product, nil
}

func findOutput(outs []OutputConfig, typ string) int {
	for i, o := range outs {
		if strings.EqualFold(o.Type, typ) {
			return i
		}
	}
	return -1
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
