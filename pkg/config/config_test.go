package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestParseScale(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"32768", 32768, true},
		{"0x8000", 32768, true},
		{"2047*16", 32752, true},
		{" 2047 * 16 ", 32752, true},
		{"signed16", 32768, true},
		{"Shifted12", 32752, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"abc", 0, false},
		{"2047*", 0, false},
		{"-2*-3", 0, false},
		{"16*0", 0, false},
		{"4294967297*4294967297", 0, false},
		{"65536*65536", 0, false},
		{"2147483647", 2147483647, true},
		{"0x80000000", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseScale(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseScale(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("ParseScale(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" mqtt, ,prometheus ")
	want := []string{"mqtt", "prometheus"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseCSV = %v; want %v", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device != "/dev/mypci" {
		t.Fatalf("device: got %q", cfg.Device)
	}
	if cfg.Scale != 32768 {
		t.Fatalf("scale: got %d", cfg.Scale)
	}
	if cfg.Count != 1 {
		t.Fatalf("count: got %d", cfg.Count)
	}
	fs, err := cfg.FullScalePotential()
	if err != nil {
		t.Fatalf("full scale: %v", err)
	}
	if fs != 10*physic.Volt {
		t.Fatalf("full scale: got %s", fs)
	}
	if len(cfg.Outputs) != 1 || cfg.Outputs[0].Type != OutputConsole {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-device", "/tmp/fake",
		"-scale", "2047*16",
		"-count", "0",
		"-interval-ms", "250",
		"-mqtt-server", "tcp://broker:1883",
		"-mqtt-topic", "lab/voltage",
		"-textfile", "/tmp/mypci.prom",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device != "/tmp/fake" || cfg.Scale != 32752 || cfg.Count != 0 || cfg.IntervalMs != 250 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Outputs) != 3 {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if cfg.Outputs[0].Type != OutputConsole {
		t.Fatalf("console must stay first: %+v", cfg.Outputs)
	}
	m := cfg.Outputs[findOutput(cfg.Outputs, OutputMQTT)].MQTT
	if m == nil || m.Server != "tcp://broker:1883" || m.StateTopic != "lab/voltage" {
		t.Fatalf("mqtt config: %+v", m)
	}
	if p := cfg.Outputs[findOutput(cfg.Outputs, OutputPrometheus)]; p.Textfile != "/tmp/mypci.prom" {
		t.Fatalf("prometheus config: %+v", p)
	}
}

func TestLoadFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	js := `{"device": "/dev/other", "scale": "shifted12", "full_scale": "5V", "count": 3}`
	if err := os.WriteFile(path, []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load([]string{"-config", path, "-count", "2"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device != "/dev/other" {
		t.Fatalf("device from file: got %q", cfg.Device)
	}
	if cfg.Scale != 32752 {
		t.Fatalf("scale from file: got %d", cfg.Scale)
	}
	if cfg.Count != 2 {
		t.Fatalf("flag should override file count: got %d", cfg.Count)
	}
	if cfg.Outputs[0].Type != OutputConsole {
		t.Fatalf("console not added: %+v", cfg.Outputs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := [][]string{
		{"-scale", "0"},
		{"-full-scale", "ten volts"},
		{"-full-scale", "-10V"},
		{"-sensor-type", "usb"},
		{"-count", "-3"},
		{"-outputs", "carrier-pigeon"},
		{"-outputs", "prometheus"},
	}
	for _, args := range cases {
		if _, err := Load(args); err == nil {
			t.Fatalf("Load(%v): expected error", args)
		}
	}
}

func TestFullScaleBounds(t *testing.T) {
	tests := []struct {
		in   string
		want physic.ElectricPotential
		ok   bool
	}{
		{"10V", 10 * physic.Volt, true},
		{"4.096V", 4096 * physic.MilliVolt, true},
		{"1MV", 1000000 * physic.Volt, true},
		{"-10V", 0, false},
		{"0V", 0, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.FullScale = tt.in
		got, err := cfg.FullScalePotential()
		if (err == nil) != tt.ok {
			t.Fatalf("FullScalePotential(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("FullScalePotential(%q) = %s; want %s", tt.in, got, tt.want)
		}
		if (cfg.Validate() == nil) != tt.ok {
			t.Fatalf("Validate with full scale %q: ok=%v", tt.in, tt.ok)
		}
	}
}

func TestValidateScaleBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scale = MaxScale + 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for scale above %d", MaxScale)
	}
	cfg.Scale = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative scale")
	}
}

func TestLoadVersion(t *testing.T) {
	cfg, err := Load([]string{"-version"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ShowVersion {
		t.Fatalf("ShowVersion not set")
	}
}
