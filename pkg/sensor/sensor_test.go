package sensor

import (
	"testing"

	"github.com/ericogr/mypci-voltage/pkg/config"
)

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New(device): %v", err)
	}
	ds, ok := s.(*DeviceSensor)
	if !ok {
		t.Fatalf("New(device) returned %T", s)
	}
	if ds.path != "/dev/mypci" || ds.sc.scale != ScaleSigned16 {
		t.Fatalf("device sensor: path=%q scale=%d", ds.path, ds.sc.scale)
	}

	cfg.SensorType = config.SensorTypeSimulation
	s, err = New(cfg)
	if err != nil {
		t.Fatalf("New(simulation): %v", err)
	}
	if _, ok := s.(*FakeSensor); !ok {
		t.Fatalf("New(simulation) returned %T", s)
	}

	cfg.SensorType = "usb"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for unknown sensor type")
	}

	cfg.SensorType = config.SensorTypeDevice
	cfg.FullScale = "lots"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for bad full scale")
	}
}
