package sensor

import (
	"strings"
	"time"

	"github.com/ericogr/mypci-voltage/pkg/config"
	"github.com/pkg/errors"
)

// Reading is one decoded and scaled sample.
type Reading struct {
	Device    string    `json:"device"`
	Raw       int16     `json:"raw"`
	Voltage   float64   `json:"voltage"`
	Timestamp time.Time `json:"timestamp"`
}

type Sensor interface {
	Read() (Reading, error)
	Close() error
}

// New builds the sensor selected by cfg.SensorType.
func New(cfg config.Config) (Sensor, error) {
	sc, err := buildScaling(cfg)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.SensorType) {
	case "", config.SensorTypeDevice:
		return NewDeviceSensor(cfg.Device, nil, sc.fullScale, sc.scale), nil
	case config.SensorTypeADS1115:
		return NewADS1115Sensor(cfg.I2C, sc)
	case config.SensorTypeSimulation:
		return NewFakeSensor(sc), nil
	}
	return nil, errors.Errorf("unknown sensor type %q", cfg.SensorType)
}
