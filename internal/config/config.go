// Package config loads the bench profile: which port the board hangs off,
// how runs are paced, and how the tool logs.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/pcibx/pkg/command"
	"github.com/OpenTraceLab/pcibx/pkg/parport"
	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
)

type Config struct {
	Device DeviceConfig `yaml:"device"`
	Run    RunConfig    `yaml:"run"`
	Log    LogConfig    `yaml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Backend string `yaml:"backend"` // ppdev | ioport | sim
	Path    string `yaml:"path"`    // ppdev node
	Address uint16 `yaml:"address"` // ioport base
	Slot    int    `yaml:"slot"`    // 1 or 2
}

// ---- RUN ----

type RunConfig struct {
	Cycles         int    `yaml:"cycles"` // 0 = until interrupted
	CycleDelayMs   int    `yaml:"cycle_delay_ms"`
	ReadyTimeoutMs int    `yaml:"ready_timeout_ms"` // 0 = no bound
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	QueueCapacity  int    `yaml:"queue_capacity"`
	Sched          string `yaml:"sched"` // normal | fifo | rr
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// Scheduling policies accepted by run.sched.
const (
	SchedNormal = "normal"
	SchedFIFO   = "fifo"
	SchedRR     = "rr"
)

// Log formats accepted by log.format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Default returns the profile used when no file is given.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Backend: string(parport.BackendPPDev),
			Path:    parport.DefaultPPDevPath,
			Address: parport.DefaultIOPortBase,
			Slot:    int(pcibx.SlotPCI1),
		},
		Run: RunConfig{
			Cycles:         1,
			ReadyTimeoutMs: int(pcibx.DefaultReadyTimeout / time.Millisecond),
			PollIntervalMs: int(pcibx.DefaultPollInterval / time.Millisecond),
			QueueCapacity:  command.DefaultCapacity,
			Sched:          SchedNormal,
		},
		Log: LogConfig{
			Level:  zerolog.InfoLevel.String(),
			Format: FormatConsole,
		},
	}
}

// Load reads a YAML profile. Keys absent from the file keep their defaults;
// unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	backend, err := parport.ParseBackend(cfg.Device.Backend)
	if err != nil {
		return fmt.Errorf("device.backend: %w", err)
	}
	if backend == parport.BackendPPDev && cfg.Device.Path == "" {
		return fmt.Errorf("device.path is required for the ppdev backend")
	}
	if backend == parport.BackendIOPort && cfg.Device.Address == 0 {
		return fmt.Errorf("device.address is required for the ioport backend")
	}
	if !pcibx.Slot(cfg.Device.Slot).Valid() {
		return fmt.Errorf("device.slot must be 1 or 2, got %d", cfg.Device.Slot)
	}

	r := cfg.Run
	switch {
	case r.Cycles < 0:
		return fmt.Errorf("run.cycles must be >= 0, got %d", r.Cycles)
	case r.CycleDelayMs < 0:
		return fmt.Errorf("run.cycle_delay_ms must be >= 0, got %d", r.CycleDelayMs)
	case r.ReadyTimeoutMs < 0:
		return fmt.Errorf("run.ready_timeout_ms must be >= 0, got %d", r.ReadyTimeoutMs)
	case r.PollIntervalMs <= 0:
		return fmt.Errorf("run.poll_interval_ms must be > 0, got %d", r.PollIntervalMs)
	case r.QueueCapacity <= 0:
		return fmt.Errorf("run.queue_capacity must be > 0, got %d", r.QueueCapacity)
	}
	switch r.Sched {
	case SchedNormal, SchedFIFO, SchedRR:
	default:
		return fmt.Errorf("run.sched must be normal, fifo or rr, got %q", r.Sched)
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}
	return nil
}

// Port returns the interface selection for parport.Open.
func (c Config) Port() parport.Config {
	backend, err := parport.ParseBackend(c.Device.Backend)
	if err != nil {
		// Left for parport.Open to reject.
		backend = parport.Backend(c.Device.Backend)
	}
	return parport.Config{
		Backend: backend,
		Path:    c.Device.Path,
		Address: c.Device.Address,
	}
}

// DeviceOptions returns the options for pcibx.Open.
func (c Config) DeviceOptions(log zerolog.Logger) pcibx.Options {
	opts := pcibx.DefaultOptions()
	opts.Port = c.Port()
	opts.Slot = pcibx.Slot(c.Device.Slot)
	opts.PollInterval = ms(c.Run.PollIntervalMs)
	opts.ReadyTimeout = ms(c.Run.ReadyTimeoutMs)
	opts.Logger = log
	if opts.Port.Backend == parport.BackendSim {
		opts.Sim = pcibx.DefaultSimConfig()
		opts.Sim.Slot = opts.Slot
	}
	return opts
}

// CycleDelay returns run.cycle_delay_ms as a duration.
func (c Config) CycleDelay() time.Duration {
	return ms(c.Run.CycleDelayMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
