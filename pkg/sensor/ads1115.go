package sensor

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ericogr/mypci-voltage/pkg/config"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01
)

// pgaRanges maps the ADS1115 programmable gain settings to their full-scale
// range.
var pgaRanges = []physic.ElectricPotential{
	6144 * physic.MilliVolt,
	4096 * physic.MilliVolt,
	2048 * physic.MilliVolt,
	1024 * physic.MilliVolt,
	512 * physic.MilliVolt,
	256 * physic.MilliVolt,
}

// ADS1115Sensor takes single-shot conversions from one ADS1115 input and
// scales them like the PCI card samples. The conversion register is MSB
// first, unlike the character device.
type ADS1115Sensor struct {
	dev        *i2c.Dev
	bus        i2c.BusCloser
	name       string
	channel    int
	sampleRate int
	pga        byte
	sc         scaling
}

func NewADS1115Sensor(cfg config.I2CConfig, sc scaling) (Sensor, error) {
	pga, err := pgaForFullScale(sc.fullScale)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host init")
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, &ReadError{Kind: DeviceUnavailable, Op: opOpen, Path: "i2c-" + cfg.Bus, Err: err}
	}
	dev := &i2c.Dev{Addr: uint16(cfg.Address), Bus: bus}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 128
	}
	return &ADS1115Sensor{
		dev:        dev,
		bus:        bus,
		name:       fmt.Sprintf("i2c-%s@0x%02x/%d", cfg.Bus, cfg.Address, cfg.Channel),
		channel:    cfg.Channel,
		sampleRate: cfg.SampleRate,
		pga:        pga,
		sc:         sc,
	}, nil
}

func (s *ADS1115Sensor) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

func (s *ADS1115Sensor) Read() (Reading, error) {
	msb, lsb, err := s.configForChannel(s.channel, s.sampleRate)
	if err != nil {
		return Reading{}, err
	}
	if err := s.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return Reading{}, &ReadError{Kind: Unknown, Op: "write config", Path: s.name, Err: err}
	}
	// wait for conversion (simple sleep)
	delayMs := int(1000.0/float64(s.sampleRate)) + 2
	time.Sleep(time.Duration(delayMs) * time.Millisecond)

	readBuf := make([]byte, SampleSize)
	if err := s.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return Reading{}, &ReadError{Kind: Unknown, Op: opRead, Path: s.name, Err: err}
	}
	raw := int16(binary.BigEndian.Uint16(readBuf))
	return Reading{Device: s.name, Raw: raw, Voltage: s.sc.voltage(raw), Timestamp: time.Now()}, nil
}

func pgaForFullScale(fs physic.ElectricPotential) (byte, error) {
	for i, r := range pgaRanges {
		if r == fs {
			return byte(i), nil
		}
	}
	return 0, errors.Errorf("ads1115: unsupported full scale %s", fs)
}

func (s *ADS1115Sensor) configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, errors.Errorf("invalid channel %d", channel)
	}
	// data rate bits
	var dr byte
	switch sampleRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(s.pga&0x7) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	// comparator default: disabled (bits 1:0 = 11)
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
