// Package command defines the board commands a run executes and the bounded
// queue that holds them.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
)

// ErrInvalidArgument is returned for a missing, malformed or out-of-range
// command payload.
var ErrInvalidArgument = errors.New("command: invalid argument")

// Kind identifies a board command.
type Kind int

const (
	GlobalPower Kind = iota + 1
	UUTPower
	PrintBoardID
	PrintFirmwareRev
	PrintStatus
	ClearBitStatus
	Aux5
	Aux33
	MeasureFrequency
	MeasureV25Ref
	MeasureV12UUT
	MeasureV5UUT
	MeasureV33UUT
	MeasureV5Aux
	MeasureA5
	MeasureA12
	MeasureA33
	FastRamp
	ResetDelay
	ResetDefault
)

// Payload is the argument type a Kind carries.
type Payload int

const (
	PayloadNone Payload = iota
	PayloadBool
	PayloadSeconds
)

type kindInfo struct {
	name    string
	payload Payload
	usage   string
	channel pcibx.Channel
}

var kinds = map[Kind]kindInfo{
	GlobalPower:      {"glob", PayloadBool, "Turn Global power ON/OFF (does not turn ON UUT Voltages)", 0},
	UUTPower:         {"uut", PayloadBool, "Turn UUT Voltages ON/OFF (also turns Global power ON)", 0},
	PrintBoardID:     {"printboardid", PayloadNone, "Print the Board ID", 0},
	PrintFirmwareRev: {"printfirmrev", PayloadNone, "Print the Firmware revision", 0},
	PrintStatus:      {"printstatus", PayloadNone, "Print the Board Status Bits", 0},
	ClearBitStatus:   {"clearbitstat", PayloadNone, "Clear 32/64 bit status", 0},
	Aux5:             {"aux5", PayloadBool, "Turn +5V Aux ON or OFF", 0},
	Aux33:            {"aux33", PayloadBool, "Turn +3.3V Aux ON or OFF", 0},
	MeasureFrequency: {"measurefreq", PayloadNone, "Measure system frequency", 0},
	MeasureV25Ref:    {"measurev25ref", PayloadNone, "Measure +2.5V Reference", pcibx.ChannelV25Ref},
	MeasureV12UUT:    {"measurev12uut", PayloadNone, "Measure +12V UUT", pcibx.ChannelV12UUT},
	MeasureV5UUT:     {"measurev5uut", PayloadNone, "Measure +5V UUT", pcibx.ChannelV5UUT},
	MeasureV33UUT:    {"measurev33uut", PayloadNone, "Measure +3.3V UUT", pcibx.ChannelV33UUT},
	MeasureV5Aux:     {"measurev5aux", PayloadNone, "Measure +5V AUX", pcibx.ChannelV5Aux},
	MeasureA5:        {"measurea5", PayloadNone, "Measure +5V Current", pcibx.ChannelA5},
	MeasureA12:       {"measurea12", PayloadNone, "Measure +12V Current", pcibx.ChannelA12},
	MeasureA33:       {"measurea33", PayloadNone, "Measure +3.3V Current", pcibx.ChannelA33},
	FastRamp:         {"fastramp", PayloadBool, "Select slow/fast +5V ramp", 0},
	ResetDelay:       {"rst", PayloadSeconds, "Set RST# (reset) delay (in seconds)", 0},
	ResetDefault:     {"rstdefault", PayloadNone, "Set RST# to default (150msec)", 0},
}

// Kinds returns every command kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := GlobalPower; k <= ResetDefault; k++ {
		out = append(out, k)
	}
	return out
}

// Lookup resolves a command name such as "uut" or "measurea12".
// Matching is case-insensitive.
func Lookup(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, info := range kinds {
		if info.name == name {
			return k, true
		}
	}
	return 0, false
}

// Name returns the command name used by flags and scripts.
func (k Kind) Name() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind%d", int(k))
}

func (k Kind) String() string {
	return k.Name()
}

// Payload returns the argument type of k.
func (k Kind) Payload() Payload {
	return kinds[k].payload
}

// Usage returns a one-line description for help output.
func (k Kind) Usage() string {
	return kinds[k].usage
}

// Channel returns the ADC channel for measurement kinds.
func (k Kind) Channel() (pcibx.Channel, bool) {
	ch := kinds[k].channel
	return ch, ch != 0
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Command is one queued board command. Bool is used by PayloadBool kinds,
// Seconds by ResetDelay.
type Command struct {
	Kind    Kind
	Bool    bool
	Seconds float64
}

// New returns a command that takes no argument.
func New(k Kind) (Command, error) {
	if !k.Valid() {
		return Command{}, fmt.Errorf("%w: unknown command kind %d", ErrInvalidArgument, int(k))
	}
	if k.Payload() != PayloadNone {
		return Command{}, fmt.Errorf("%w: %s requires an argument", ErrInvalidArgument, k)
	}
	return Command{Kind: k}, nil
}

// NewBool returns a switch command such as GlobalPower or Aux5.
func NewBool(k Kind, on bool) (Command, error) {
	if k.Payload() != PayloadBool {
		return Command{}, fmt.Errorf("%w: %s does not take a boolean", ErrInvalidArgument, k)
	}
	return Command{Kind: k, Bool: on}, nil
}

// NewResetDelay returns a ResetDelay command after checking sec fits the
// board's timer.
func NewResetDelay(sec float64) (Command, error) {
	if err := pcibx.ValidateResetDelay(sec); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return Command{Kind: ResetDelay, Seconds: sec}, nil
}

// Parse builds a command of kind k from its textual argument. arg is ignored
// for kinds without a payload.
func Parse(k Kind, arg string) (Command, error) {
	switch k.Payload() {
	case PayloadBool:
		on, err := ParseBool(arg)
		if err != nil {
			return Command{}, fmt.Errorf("%s: %w", k, err)
		}
		return NewBool(k, on)
	case PayloadSeconds:
		sec, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidArgument, k, arg)
		}
		return NewResetDelay(sec)
	}
	return New(k)
}

// ParseBool accepts 1/0, true/false, yes/no and on/off in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidArgument, s)
}

// Arg returns the textual argument of c, or "" for kinds without one.
func (c Command) Arg() string {
	switch c.Kind.Payload() {
	case PayloadBool:
		if c.Bool {
			return "on"
		}
		return "off"
	case PayloadSeconds:
		return strconv.FormatFloat(c.Seconds, 'f', -1, 64)
	}
	return ""
}

// String renders c in script syntax, e.g. "uut on" or "rst 0.15".
func (c Command) String() string {
	if arg := c.Arg(); arg != "" {
		return c.Kind.Name() + " " + arg
	}
	return c.Kind.Name()
}
