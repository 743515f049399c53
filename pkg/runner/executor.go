// Package runner executes a command queue against a board.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/pcibx/pkg/bus"
	"github.com/OpenTraceLab/pcibx/pkg/command"
	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
)

// Engine is the set of board operations the executor dispatches to.
// *pcibx.Device implements it.
type Engine interface {
	GlobalPower(on bool) error
	UUTPower(ctx context.Context, on bool) error
	BoardID() (uint8, error)
	FirmwareRevision() (uint8, error)
	Status() (pcibx.Status, error)
	ClearBitStatus() error
	Aux5(on bool) error
	Aux33(on bool) error
	FastRamp(fast bool) error
	MeasureFrequency(ctx context.Context) (float64, error)
	Measure(ctx context.Context, ch pcibx.Channel) (float64, error)
	SetResetDelay(sec float64) error
	DefaultResetDelay() error
}

var _ Engine = (*pcibx.Device)(nil)

// Executor runs every command of Queue against Engine, once or in cycles.
type Executor struct {
	Engine Engine
	Queue  *command.Queue

	// Cycles is the number of passes: 1 runs once, 0 repeats until ctx is
	// cancelled.
	Cycles int
	// CycleDelay separates passes. It is not applied after the last pass.
	CycleDelay time.Duration

	Delayer  bus.Delayer
	Reporter Reporter
	Logger   zerolog.Logger
}

// Run executes the queue. It returns the first engine or reporter error
// wrapped with the failing command, or ctx's error once ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	if e.Queue == nil || e.Queue.Len() == 0 {
		return command.ErrEmptyQueue
	}
	if e.Engine == nil {
		return fmt.Errorf("runner: no engine")
	}
	if e.Cycles < 0 {
		return fmt.Errorf("runner: negative cycle count %d", e.Cycles)
	}
	delay := e.Delayer
	if delay == nil {
		delay = bus.SystemDelayer{}
	}

	cmds := e.Queue.Commands()
	start := time.Now()

	for cycle := 1; e.Cycles == 0 || cycle <= e.Cycles; cycle++ {
		for _, cmd := range cmds {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.Logger.Debug().Int("cycle", cycle).Stringer("command", cmd).Msg("dispatch")

			res, ok, err := e.dispatch(ctx, cmd)
			if err != nil {
				return fmt.Errorf("runner: %s: %w", cmd, err)
			}
			if !ok {
				continue
			}
			res.Command = cmd
			res.Cycle = cycle
			res.Elapsed = time.Since(start)
			if e.Reporter != nil {
				if err := e.Reporter.Report(res); err != nil {
					return fmt.Errorf("runner: report %s: %w", cmd, err)
				}
			}
		}
		e.Logger.Debug().Int("cycle", cycle).Msg("all commands sent")

		if e.Cycles != 0 && cycle == e.Cycles {
			break
		}
		if e.CycleDelay > 0 {
			if err := delay.Delay(ctx, e.CycleDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch runs one command. ok reports whether it produced a Result.
func (e *Executor) dispatch(ctx context.Context, cmd command.Command) (res Result, ok bool, err error) {
	eng := e.Engine

	if ch, isMeasure := cmd.Kind.Channel(); isMeasure {
		v, err := eng.Measure(ctx, ch)
		if err != nil {
			return res, false, err
		}
		return measured(ch.Label(), v, ch.Unit()), true, nil
	}

	switch cmd.Kind {
	case command.GlobalPower:
		err = eng.GlobalPower(cmd.Bool)
	case command.UUTPower:
		err = eng.UUTPower(ctx, cmd.Bool)
	case command.PrintBoardID:
		var id uint8
		if id, err = eng.BoardID(); err == nil {
			res, ok = Result{Text: fmt.Sprintf("Board ID: 0x%02X", id)}, true
		}
	case command.PrintFirmwareRev:
		var rev uint8
		if rev, err = eng.FirmwareRevision(); err == nil {
			res, ok = Result{Text: fmt.Sprintf("Firmware revision: 0x%02X", rev)}, true
		}
	case command.PrintStatus:
		var st pcibx.Status
		if st, err = eng.Status(); err == nil {
			res, ok = Result{Text: "Board status:  " + st.String()}, true
		}
	case command.ClearBitStatus:
		err = eng.ClearBitStatus()
	case command.Aux5:
		err = eng.Aux5(cmd.Bool)
	case command.Aux33:
		err = eng.Aux33(cmd.Bool)
	case command.FastRamp:
		err = eng.FastRamp(cmd.Bool)
	case command.MeasureFrequency:
		var mhz float64
		if mhz, err = eng.MeasureFrequency(ctx); err == nil {
			res, ok = measured("system frequency", mhz, pcibx.UnitMHz), true
		}
	case command.ResetDelay:
		err = eng.SetResetDelay(cmd.Seconds)
	case command.ResetDefault:
		err = eng.DefaultResetDelay()
	default:
		err = fmt.Errorf("%w: unknown command kind %d", command.ErrInvalidArgument, int(cmd.Kind))
	}
	return res, ok, err
}

func measured(label string, v float64, unit pcibx.Unit) Result {
	return Result{Measured: true, Label: label, Value: v, Unit: unit}
}
