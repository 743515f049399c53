package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenTraceLab/pcibx/pkg/parport"
	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Run.QueueCapacity != 512 || cfg.Run.PollIntervalMs != 200 || cfg.Run.ReadyTimeoutMs != 10000 {
		t.Fatalf("unexpected run defaults: %+v", cfg.Run)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  backend: ioport
  address: 0x278
  slot: 2
run:
  cycles: 0
  cycle_delay_ms: 500
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Device.Address != 0x278 || cfg.Device.Slot != 2 {
		t.Fatalf("device = %+v", cfg.Device)
	}
	if cfg.Device.Path != parport.DefaultPPDevPath {
		t.Fatalf("device.path = %q, want default kept", cfg.Device.Path)
	}
	if cfg.Run.Cycles != 0 || cfg.CycleDelay() != 500*time.Millisecond {
		t.Fatalf("run = %+v", cfg.Run)
	}
	if cfg.Run.PollIntervalMs != 200 {
		t.Fatalf("poll_interval_ms = %d, want default 200", cfg.Run.PollIntervalMs)
	}

	port := cfg.Port()
	if port.Backend != parport.BackendIOPort || port.Address != 0x278 {
		t.Fatalf("Port() = %+v", port)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load(empty) returned error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load(empty) = %+v, want defaults", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "device:\n  baud: 9600\n"))
	if err == nil || !strings.Contains(err.Error(), "baud") {
		t.Fatalf("Load error = %v, want unknown field baud", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load error = %v, want ErrNotExist", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad backend", func(c *Config) { c.Device.Backend = "usb" }, "device.backend"},
		{"ppdev without path", func(c *Config) { c.Device.Path = "" }, "device.path"},
		{"ioport without address", func(c *Config) { c.Device.Backend = "ioport"; c.Device.Address = 0 }, "device.address"},
		{"slot 3", func(c *Config) { c.Device.Slot = 3 }, "device.slot"},
		{"negative cycles", func(c *Config) { c.Run.Cycles = -1 }, "run.cycles"},
		{"negative delay", func(c *Config) { c.Run.CycleDelayMs = -5 }, "run.cycle_delay_ms"},
		{"negative timeout", func(c *Config) { c.Run.ReadyTimeoutMs = -1 }, "run.ready_timeout_ms"},
		{"zero poll", func(c *Config) { c.Run.PollIntervalMs = 0 }, "run.poll_interval_ms"},
		{"zero capacity", func(c *Config) { c.Run.QueueCapacity = 0 }, "run.queue_capacity"},
		{"bad sched", func(c *Config) { c.Run.Sched = "batch" }, "run.sched"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			before := cfg
			err := Validate(&cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate error = %v, want mention of %s", err, tt.want)
			}
			if cfg != before {
				t.Fatal("Validate mutated the config")
			}
		})
	}
}

func TestDeviceOptions(t *testing.T) {
	cfg := Default()
	cfg.Device.Backend = "simulator"
	cfg.Device.Slot = 2
	cfg.Run.ReadyTimeoutMs = 0
	cfg.Run.PollIntervalMs = 50

	opts := cfg.DeviceOptions(pcibx.DefaultOptions().Logger)
	if opts.Port.Backend != parport.BackendSim {
		t.Fatalf("backend = %q, want sim", opts.Port.Backend)
	}
	if opts.Slot != pcibx.SlotPCI2 || opts.Sim.Slot != pcibx.SlotPCI2 {
		t.Fatalf("slot = %s sim slot = %s, want PCI_2", opts.Slot, opts.Sim.Slot)
	}
	if opts.ReadyTimeout != 0 || opts.PollInterval != 50*time.Millisecond {
		t.Fatalf("timing = %s/%s", opts.ReadyTimeout, opts.PollInterval)
	}
}
