// Package prom exposes readings to Prometheus through the node_exporter
// textfile collector, since the reader usually exits after one sample.
package prom

import (
	"github.com/ericogr/mypci-voltage/pkg/output"
	"github.com/ericogr/mypci-voltage/pkg/sensor"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type TextfileOutput struct {
	path     string
	registry *prometheus.Registry
	voltage  *prometheus.GaugeVec
	raw      *prometheus.GaugeVec
	lastRead *prometheus.GaugeVec
	reads    *prometheus.CounterVec
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"device"},
	)
}

func NewTextfile(path string) (output.Output, error) {
	if path == "" {
		return nil, errors.New("prometheus textfile path is empty")
	}
	o := &TextfileOutput{
		path:     path,
		registry: prometheus.NewRegistry(),
		voltage:  newGauge("mypci_voltage_volts", "Last scaled sample (units: V)"),
		raw:      newGauge("mypci_raw_sample", "Last raw signed 16-bit sample"),
		lastRead: newGauge("mypci_last_read_timestamp_seconds", "Unix time of the last successful read"),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mypci_reads_total",
			Help: "Successful reads during this run",
		}, []string{"device"}),
	}
	o.registry.MustRegister(o.voltage, o.raw, o.lastRead, o.reads)
	return o, nil
}

func (o *TextfileOutput) Publish(r sensor.Reading) error {
	o.voltage.WithLabelValues(r.Device).Set(r.Voltage)
	o.raw.WithLabelValues(r.Device).Set(float64(r.Raw))
	o.lastRead.WithLabelValues(r.Device).Set(float64(r.Timestamp.UnixNano()) / 1e9)
	o.reads.WithLabelValues(r.Device).Inc()
	return errors.Wrap(prometheus.WriteToTextfile(o.path, o.registry), "write textfile")
}

func (o *TextfileOutput) Close() error { return nil }
