package sensor

import (
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// Opener acquires a byte source for path. The caller closes it.
type Opener func(path string) (io.ReadCloser, error)

// OpenDevice opens a device node read-only.
func OpenDevice(path string) (io.ReadCloser, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, os.ModeDevice)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeviceSensor reads one sample per Read from a character device. The
// device is opened and closed inside every Read.
type DeviceSensor struct {
	path string
	open Opener
	sc   scaling
	now  func() time.Time
}

// NewDeviceSensor returns a sensor for path. A nil open uses OpenDevice.
func NewDeviceSensor(path string, open Opener, fullScale physic.ElectricPotential, scale int) *DeviceSensor {
	if open == nil {
		open = OpenDevice
	}
	return &DeviceSensor{
		path: path,
		open: open,
		sc:   scaling{fullScale: fullScale, scale: scale},
		now:  time.Now,
	}
}

func (s *DeviceSensor) Read() (Reading, error) {
	raw, err := s.ReadRaw()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Device: s.path, Raw: raw, Voltage: s.sc.voltage(raw), Timestamp: s.now()}, nil
}

// ReadRaw opens the device, reads exactly SampleSize bytes and decodes them.
// It blocks for as long as the driver does.
func (s *DeviceSensor) ReadRaw() (int16, error) {
	rc, err := s.open(s.path)
	if err != nil {
		return 0, classify(opOpen, s.path, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			log.WithField("device", s.path).Warnf("close: %v", cerr)
		}
	}()

	buf := make([]byte, SampleSize)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return 0, classify(opRead, s.path, err)
	}
	log.WithField("device", s.path).Debugf("read % x", buf)
	return DecodeRaw(buf)
}

// Close is a no-op: the device is never held between reads.
func (s *DeviceSensor) Close() error { return nil }
