// Package output renders caption results. Every type here implements
// imgcap.Sink and is driven from the single goroutine running the batch, so
// none of them lock.
package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/chriskillpack/imgcap"
	"github.com/mitchellh/colorstring"
)

const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// Formats lists the accepted console output formats.
var Formats = []string{FormatPretty, FormatJSON}

func colorizer(color bool) colorstring.Colorize {
	return colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !color,
	}
}

// PrintSummary writes the closing line of a run.
func PrintSummary(w io.Writer, processed int, color bool) error {
	c := colorizer(color)
	_, err := fmt.Fprintf(w, "\n%s\n", c.Color(fmt.Sprintf("[bold][green]Processed %d images successfully![reset]", processed)))
	return err
}

// Multi fans results out to each sink in order.
type Multi []imgcap.Sink

var _ imgcap.Sink = Multi{}

func (m Multi) Begin(total int) error {
	for _, s := range m {
		if err := s.Begin(total); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Emit(res imgcap.Result) error {
	for _, s := range m {
		if err := s.Emit(res); err != nil {
			return err
		}
	}
	return nil
}

// End ends every sink, even when an earlier one fails, so that files and
// database rows are finalized wherever possible.
func (m Multi) End() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.End())
	}
	return errors.Join(errs...)
}
