package runner

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/pcibx/pkg/command"
	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
)

// Result is the output of one command. Commands that only switch something
// produce no Result.
type Result struct {
	Command command.Command
	// Cycle counts passes over the queue, starting at 1.
	Cycle int
	// Elapsed is measured from the start of Run.
	Elapsed time.Duration

	// Text is set for informational results (board ID, revision, status).
	Text string

	// Measured results carry a label, value and unit.
	Measured bool
	Label    string
	Value    float64
	Unit     pcibx.Unit
}

// Quantity returns the measurement as a physical quantity, or nil for text
// results.
func (r Result) Quantity() fmt.Stringer {
	if !r.Measured {
		return nil
	}
	switch r.Unit {
	case pcibx.UnitMHz:
		return physic.Frequency(r.Value * float64(physic.MegaHertz))
	case pcibx.UnitAmpere:
		return physic.ElectricCurrent(r.Value * float64(physic.Ampere))
	default:
		return physic.ElectricPotential(r.Value * float64(physic.Volt))
	}
}

func (r Result) String() string {
	if !r.Measured {
		return r.Text
	}
	return fmt.Sprintf("Measured %s: %f %s", r.Label, r.Value, r.Unit)
}

// Reporter receives results as they are produced.
type Reporter interface {
	Report(Result) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Result) error

func (f ReporterFunc) Report(r Result) error {
	return f(r)
}

// Collector is a Reporter that keeps every result.
type Collector struct {
	Results []Result
}

func (c *Collector) Report(r Result) error {
	c.Results = append(c.Results, r)
	return nil
}
