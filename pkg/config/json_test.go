package config

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalConfigJSON(t *testing.T) {
	js := `{
        "device": "/dev/mypci",
        "scale": 32752,
        "full_scale": "10V",
        "sensor_type": "ads1115",
        "i2c": { "bus": "2", "address": 72, "channel": 1, "sample_rate": 250 },
        "outputs": [
            {"type": "console"},
            {"type": "mqtt", "mqtt": {"server": "tcp://localhost:1883", "state_topic": "mypci/voltage"}},
            {"type": "prometheus", "textfile": "/var/lib/node_exporter/mypci.prom"}
        ],
        "count": 0,
        "interval_ms": 500
    }`

	var cfg Config
	if err := json.Unmarshal([]byte(js), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Scale != 32752 {
		t.Fatalf("scale: got %d", cfg.Scale)
	}
	if cfg.SensorType != SensorTypeADS1115 {
		t.Fatalf("sensor_type: got %q", cfg.SensorType)
	}
	if cfg.I2C.Address != 72 || cfg.I2C.Bus != "2" || cfg.I2C.Channel != 1 || cfg.I2C.SampleRate != 250 {
		t.Fatalf("i2c: %+v", cfg.I2C)
	}
	if len(cfg.Outputs) != 3 {
		t.Fatalf("outputs len: %d", len(cfg.Outputs))
	}
	if cfg.Outputs[1].MQTT == nil || cfg.Outputs[1].MQTT.StateTopic != "mypci/voltage" {
		t.Fatalf("mqtt output: %+v", cfg.Outputs[1])
	}
	if cfg.Outputs[2].Textfile != "/var/lib/node_exporter/mypci.prom" {
		t.Fatalf("prometheus output: %+v", cfg.Outputs[2])
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestUnmarshalScaleString(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{"scale": "2047*16"}`), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Scale != 32752 {
		t.Fatalf("scale: got %d", cfg.Scale)
	}
	if err := json.Unmarshal([]byte(`{"scale": "nope"}`), &cfg); err == nil {
		t.Fatalf("expected error for bad scale")
	}
}
