package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/OpenTraceLab/pcibx/pkg/runner"
)

// textReporter prints informational results on info prefixed "# " and
// measurements on data as "<sec>.<usec> <value>  # Measured ...", a layout
// gnuplot reads directly.
type textReporter struct {
	data io.Writer
	info io.Writer
}

func (r *textReporter) Report(res runner.Result) error {
	if !res.Measured {
		_, err := fmt.Fprintf(r.info, "# %s\n", res.Text)
		return err
	}
	sec := res.Elapsed / time.Second
	usec := (res.Elapsed % time.Second) / time.Microsecond
	_, err := fmt.Fprintf(r.data, "%d.%06d %f  # %s\n", int64(sec), int64(usec), res.Value, res)
	return err
}

type jsonResult struct {
	Elapsed  float64  `json:"elapsed_s"`
	Cycle    int      `json:"cycle"`
	Command  string   `json:"command"`
	Text     string   `json:"text,omitempty"`
	Label    string   `json:"label,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Quantity string   `json:"quantity,omitempty"`
}

// jsonReporter writes one JSON object per result.
type jsonReporter struct {
	enc *json.Encoder
}

func newJSONReporter(w io.Writer) *jsonReporter {
	return &jsonReporter{enc: json.NewEncoder(w)}
}

func (r *jsonReporter) Report(res runner.Result) error {
	out := jsonResult{
		Elapsed: res.Elapsed.Seconds(),
		Cycle:   res.Cycle,
		Command: res.Command.String(),
		Text:    res.Text,
	}
	if res.Measured {
		out.Label = res.Label
		v := res.Value
		out.Value = &v
		out.Unit = string(res.Unit)
		out.Quantity = res.Quantity().String()
	}
	return r.enc.Encode(out)
}
