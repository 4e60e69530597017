package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/ericogr/pyrologger/pkg/output"
	"github.com/ericogr/pyrologger/pkg/sensor"
)

var flagged = color.New(color.FgYellow, color.Bold)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func NewConsoleWriter(w io.Writer) output.Output { return &ConsoleOutput{w: w} }

// Publish prints one line per reading. Readings that are not plain
// measurements are highlighted.
func (c *ConsoleOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		line := fmt.Sprintf("%s %s source=%s value=%.6f status=%s",
			r.Timestamp.Format(time.RFC3339), r.Kind, r.Source, r.Value, r.Status)
		var err error
		if r.Status != sensor.StatusOK {
			_, err = flagged.Fprintln(c.w, line)
		} else {
			_, err = fmt.Fprintln(c.w, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
