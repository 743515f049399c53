package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/pcibx/pkg/command"
)

// step is one entry of the run plan in command-line order: either a device
// command or a script to expand in its place.
type step struct {
	cmd    command.Command
	script string
}

// commandFlag is the pflag.Value behind every --cmd-* flag. Each occurrence
// appends to the shared plan, so repeated and interleaved flags keep their
// order.
type commandFlag struct {
	kind command.Kind
	plan *[]step
}

func (f *commandFlag) String() string { return "" }

func (f *commandFlag) Set(v string) error {
	if f.kind.Payload() == command.PayloadNone && v != noArg {
		return fmt.Errorf("%w: %s takes no argument", command.ErrInvalidArgument, f.kind)
	}
	c, err := command.Parse(f.kind, v)
	if err != nil {
		return err
	}
	*f.plan = append(*f.plan, step{cmd: c})
	return nil
}

func (f *commandFlag) Type() string {
	switch f.kind.Payload() {
	case command.PayloadBool:
		return "ON/OFF"
	case command.PayloadSeconds:
		return "SECONDS"
	}
	return "bool"
}

// scriptFlag expands a script file at its position among the --cmd-* flags.
type scriptFlag struct {
	plan *[]step
}

func (f *scriptFlag) String() string { return "" }

func (f *scriptFlag) Set(v string) error {
	*f.plan = append(*f.plan, step{script: v})
	return nil
}

func (f *scriptFlag) Type() string { return "FILE" }

const noArg = "true"

// addCommandFlags registers --cmd-<name> for every command kind.
func addCommandFlags(fs *pflag.FlagSet, plan *[]step) {
	for _, k := range command.Kinds() {
		fl := fs.VarPF(&commandFlag{kind: k, plan: plan}, "cmd-"+k.Name(), "", k.Usage())
		if k.Payload() == command.PayloadNone {
			fl.NoOptDefVal = noArg
		}
	}
	fs.Var(&scriptFlag{plan: plan}, "script", "Run the commands of a script file at this position")
}
