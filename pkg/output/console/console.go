package console

import (
	"fmt"
	"io"
	"os"

	"github.com/ericogr/mypci-voltage/pkg/output"
	"github.com/ericogr/mypci-voltage/pkg/sensor"
)

// ConsoleOutput prints one "<voltage> V" line per reading.
type ConsoleOutput struct {
	w io.Writer
}

// NewConsole writes to whatever os.Stdout is at publish time.
func NewConsole() output.Output { return &ConsoleOutput{} }

func NewConsoleWriter(w io.Writer) output.Output { return &ConsoleOutput{w: w} }

func (c *ConsoleOutput) Publish(r sensor.Reading) error {
	w := c.w
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, sensor.FormatVoltage(r.Voltage))
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
