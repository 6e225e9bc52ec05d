package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ericogr/mypci-voltage/pkg/config"
	"github.com/ericogr/mypci-voltage/pkg/output"
	"github.com/ericogr/mypci-voltage/pkg/output/console"
	"github.com/ericogr/mypci-voltage/pkg/output/mqtt"
	"github.com/ericogr/mypci-voltage/pkg/output/prom"
	"github.com/ericogr/mypci-voltage/pkg/sensor"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	log "github.com/sirupsen/logrus"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type outputEntry struct {
	Type   string
	Output output.Output
	// Required outputs abort the run when they fail.
	Required bool
}

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		log.Errorf("config: %v", err)
		return exitUsage
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, version.Print("mypci-voltage"))
		return exitOK
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("unknown log level %q, keeping %s", cfg.LogLevel, log.GetLevel())
	}

	s, err := sensor.New(cfg)
	if err != nil {
		log.WithField("kind", sensor.KindOf(err)).Errorf("sensor: %v", err)
		return exitFailure
	}
	defer s.Close()

	entries, err := initOutputs(cfg, stdout)
	defer closeOutputs(entries)
	if err != nil {
		log.Errorf("outputs: %v", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if err := sample(ctx, s, entries, cfg.Count, interval); err != nil {
		log.WithField("kind", sensor.KindOf(err)).Error(err)
		return exitFailure
	}
	return exitOK
}

// initOutputs builds one output per configured entry. Optional outputs that
// fail to start (an unreachable broker, say) are logged and skipped, the same
// way their publish failures are. Entries created before an error are
// returned so the caller can close them.
func initOutputs(cfg config.Config, stdout io.Writer) ([]outputEntry, error) {
	entries := make([]outputEntry, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		typ := strings.ToLower(oc.Type)
		var (
			o   output.Output
			err error
		)
		switch typ {
		case config.OutputConsole:
			entries = append(entries, outputEntry{Type: typ, Output: console.NewConsoleWriter(stdout), Required: true})
			continue
		case config.OutputMQTT:
			var mc config.MQTTConfig
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			o, err = mqtt.NewMQTT(mc)
		case config.OutputPrometheus:
			o, err = prom.NewTextfile(oc.Textfile)
		default:
			return entries, errors.Errorf("unknown output type %q", oc.Type)
		}
		if err != nil {
			log.WithField("output", typ).Warnf("disabled: %v", err)
			continue
		}
		entries = append(entries, outputEntry{Type: typ, Output: o})
	}
	return entries, nil
}

func closeOutputs(entries []outputEntry) {
	for _, e := range entries {
		if err := e.Output.Close(); err != nil {
			log.WithField("output", e.Type).Warnf("close: %v", err)
		}
	}
}

// sample reads count samples (forever when count is 0), waiting interval
// between them. It stops at the first failed read.
func sample(ctx context.Context, s sensor.Sensor, entries []outputEntry, count int, interval time.Duration) error {
	for i := 0; count == 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
		r, err := s.Read()
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"device": r.Device, "raw": r.Raw}).Debugf("voltage %v", r.Voltage)
		for _, e := range entries {
			if err := e.Output.Publish(r); err != nil {
				if e.Required {
					return errors.Wrapf(err, "%s output", e.Type)
				}
				log.WithField("output", e.Type).Warnf("publish: %v", err)
			}
		}
	}
	return nil
}
