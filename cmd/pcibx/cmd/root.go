package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pcibx/internal/config"
	"github.com/OpenTraceLab/pcibx/internal/logging"
	"github.com/OpenTraceLab/pcibx/pkg/command"
	"github.com/OpenTraceLab/pcibx/pkg/parport"
	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
	"github.com/OpenTraceLab/pcibx/pkg/runner"
	"github.com/OpenTraceLab/pcibx/pkg/script"
)

// rootOptions holds the flags of one invocation.
type rootOptions struct {
	verbose      bool
	port         string
	device       string
	backend      string
	pci1         string
	sched        string
	cycle        int
	nrcycle      int
	configPath   string
	jsonOut      bool
	readyTimeout time.Duration

	plan []step
}

// NewRootCommand builds the pcibx command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pcibx [flags] --cmd-... [--cmd-...]",
		Short: "Catalyst PCIBX32 PCI Extender control utility",
		Long: `Drive a Catalyst PCIBX32 PCI extender board through the parallel port.

Device commands run in the order given on the command line. Measurements are
printed to stdout as "<seconds> <value>  # <description>" for plotting; other
output goes to stderr prefixed with "#".

Examples:
  pcibx --cmd-uut on --cmd-measurev12uut --cmd-measurea12     # power up and sample
  pcibx -c 1000 -n 10 --cmd-measurefreq                       # ten samples, 1s apart
  pcibx --backend sim --script bringup.pcibx                  # dry run on the simulator
  pcibx -p 0x278 -P off --cmd-printstatus                     # legacy port, slot PCI_2`,
		Version:       "0.9.0",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	f := root.Flags()
	f.SortFlags = false
	f.BoolVarP(&opts.verbose, "verbose", "V", false, "Be verbose")
	f.StringVarP(&opts.port, "port", "p", "", "Port base address, e.g. 0x378 (selects the ioport backend)")
	f.StringVar(&opts.device, "device", "", "ppdev device node (default /dev/parport0)")
	f.StringVar(&opts.backend, "backend", "", "Port backend: ppdev, ioport or sim")
	f.StringVarP(&opts.pci1, "pci1", "P", "", "If true, PCI_1 (default), otherwise PCI_2 (see JP15)")
	f.StringVarP(&opts.sched, "sched", "s", "", "Scheduling policy (normal, fifo, rr)")
	f.IntVarP(&opts.cycle, "cycle", "c", 0, "Execute the commands in a cycle and delay DELAY msecs after each cycle")
	f.IntVarP(&opts.nrcycle, "nrcycle", "n", 0, "Cycle COUNT times. 0 == infinite (default)")
	f.StringVar(&opts.configPath, "config", "", "Bench profile (YAML)")
	f.BoolVar(&opts.jsonOut, "json", false, "Print results as JSON lines on stdout")
	f.DurationVar(&opts.readyTimeout, "ready-timeout", 0, "Give up waiting for RST# after this long (0 = never)")
	addCommandFlags(f, &opts.plan)

	root.AddCommand(newInterfacesCommand())
	root.AddCommand(newScriptCommand())
	root.AddCommand(newRegsCommand())
	return root
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, err := logging.New(cmd.ErrOrStderr(), logging.Verbose(cfg.Log.Level, opts.verbose), cfg.Log.Format)
	if err != nil {
		return err
	}

	log.Debug().Str("version", cmd.Root().Version).Msg("Catalyst PCIBX32 PCI Extender control utility")

	queue, err := buildQueue(opts.plan, cfg.Run.QueueCapacity)
	if err != nil {
		return err
	}

	// A real-time policy pins this goroutine to its thread; everything that
	// strobes the port below runs here, not in a spawned goroutine.
	if err := setScheduler(cfg.Run.Sched); err != nil {
		return fmt.Errorf("could not set scheduling policy: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := pcibx.Open(cfg.DeviceOptions(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Msg("close device")
		}
	}()

	var reporter runner.Reporter = &textReporter{data: cmd.OutOrStdout(), info: cmd.ErrOrStderr()}
	if opts.jsonOut {
		reporter = newJSONReporter(cmd.OutOrStdout())
	}

	exec := &runner.Executor{
		Engine:     dev,
		Queue:      queue,
		Cycles:     cfg.Run.Cycles,
		CycleDelay: cfg.CycleDelay(),
		Reporter:   reporter,
		Logger:     log,
	}
	err = exec.Run(ctx)
	if n := dev.IOErrors(); n > 0 {
		log.Warn().Int("errors", n).Msg("register transactions failed during the run")
	}
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("signal received, terminating")
	}
	return err
}

// loadConfig starts from the profile (or defaults) and applies the flags the
// user actually set.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("port") {
		addr, err := parport.ParseAddress(opts.port)
		if err != nil {
			return cfg, err
		}
		cfg.Device.Backend = string(parport.BackendIOPort)
		cfg.Device.Address = addr
	}
	if f.Changed("device") {
		cfg.Device.Backend = string(parport.BackendPPDev)
		cfg.Device.Path = opts.device
	}
	if f.Changed("backend") {
		cfg.Device.Backend = opts.backend
	}
	if f.Changed("pci1") {
		pci1, err := command.ParseBool(opts.pci1)
		if err != nil {
			return cfg, fmt.Errorf("--pci1: %w", err)
		}
		cfg.Device.Slot = int(pcibx.SlotPCI2)
		if pci1 {
			cfg.Device.Slot = int(pcibx.SlotPCI1)
		}
	}
	if f.Changed("sched") {
		cfg.Run.Sched = opts.sched
	}
	// --cycle turns cycling on; --nrcycle bounds it and defaults to forever.
	if f.Changed("cycle") {
		cfg.Run.CycleDelayMs = opts.cycle
		cfg.Run.Cycles = 0
	}
	if f.Changed("nrcycle") {
		cfg.Run.Cycles = opts.nrcycle
	}
	if f.Changed("ready-timeout") {
		cfg.Run.ReadyTimeoutMs = int(opts.readyTimeout / time.Millisecond)
	}

	if err := config.Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// buildQueue resolves the ordered plan, expanding scripts in place.
func buildQueue(plan []step, capacity int) (*command.Queue, error) {
	q := command.NewQueue(capacity)
	var parser *script.Parser

	for _, s := range plan {
		if s.script == "" {
			if err := q.Append(s.cmd); err != nil {
				return nil, err
			}
			continue
		}
		if parser == nil {
			var err error
			if parser, err = script.NewParser(); err != nil {
				return nil, err
			}
		}
		cmds, err := parser.ParseFile(s.script)
		if err != nil {
			return nil, err
		}
		if err := script.AppendAll(q, cmds); err != nil {
			return nil, fmt.Errorf("%s: %w", s.script, err)
		}
	}
	if q.Len() == 0 {
		return nil, command.ErrEmptyQueue
	}
	return q, nil
}
