// Package config holds the board configuration of a virtual machine.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/hyparm/fault"
	"github.com/sarchlab/hyparm/intc"
	"github.com/sarchlab/hyparm/mmu/cache"
)

// CacheGeometry describes one cache level.
type CacheGeometry struct {
	Sets     int `json:"sets" yaml:"sets"`
	Ways     int `json:"ways" yaml:"ways"`
	LineSize int `json:"line_size" yaml:"line_size"`
}

// Cache converts the geometry into a cache configuration.
func (g CacheGeometry) Cache() cache.Config {
	return cache.Config{
		Size:          g.Sets * g.Ways * g.LineSize,
		Associativity: g.Ways,
		BlockSize:     g.LineSize,
	}
}

func (g CacheGeometry) validate(name string) error {
	if !isPow2(g.Sets) || !isPow2(g.Ways) {
		return fault.Config("config", "%s: sets and ways must be powers of two", name)
	}
	if !isPow2(g.LineSize) || g.LineSize < 16 {
		return fault.Config("config", "%s: line_size must be a power of two >= 16", name)
	}
	return nil
}

func isPow2(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}

// Board holds the memory map, interrupt wiring and model sizes of a VM.
type Board struct {
	// IntcBase is the guest physical base of the interrupt controller.
	// Default: 0x48200000.
	IntcBase uint32 `json:"intc_base" yaml:"intc_base"`

	// IntcSize is the size of the interrupt controller window.
	// Default: 0x1000.
	IntcSize uint32 `json:"intc_size" yaml:"intc_size"`

	// TimerIRQ is the physical timer line. Default: GPT2 (38).
	TimerIRQ int `json:"timer_irq" yaml:"timer_irq"`

	// GuestTimerIRQ is the line the guest sees for its timer. Default: GPT1 (37).
	GuestTimerIRQ int `json:"guest_timer_irq" yaml:"guest_timer_irq"`

	// TimerPeriod is the number of cycles between timer ticks. Default: 1000.
	TimerPeriod uint64 `json:"timer_period" yaml:"timer_period"`

	// HighVectorsBase is the vector base used when SCTLR.V is set.
	// Default: 0xFFFF0000.
	HighVectorsBase uint32 `json:"high_vectors_base" yaml:"high_vectors_base"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `json:"log_level" yaml:"log_level"`

	L1D CacheGeometry `json:"l1d" yaml:"l1d"`
	L1I CacheGeometry `json:"l1i" yaml:"l1i"`
	L2  CacheGeometry `json:"l2" yaml:"l2"`

	// TLBEntries is the size of each TLB. Default: 32.
	TLBEntries int `json:"tlb_entries" yaml:"tlb_entries"`
}

// Default returns the board matching the CP15 and INTC reset state.
func Default() *Board {
	return &Board{
		IntcBase:        0x48200000,
		IntcSize:        intc.Size,
		TimerIRQ:        intc.IRQGPT2,
		GuestTimerIRQ:   intc.IRQGPT1,
		TimerPeriod:     1000,
		HighVectorsBase: 0xFFFF0000,
		LogLevel:        "info",
		L1D:             CacheGeometry{Sets: 64, Ways: 4, LineSize: 64},
		L1I:             CacheGeometry{Sets: 64, Ways: 4, LineSize: 64},
		L2:              CacheGeometry{Sets: 512, Ways: 8, LineSize: 64},
		TLBEntries:      32,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a Board from a JSON or YAML file, chosen by extension.
// Fields missing from the file keep their defaults.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board config file: %w", err)
	}

	b := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, b)
	} else {
		err = json.Unmarshal(data, b)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse board config: %w", err)
	}

	return b, nil
}

// Marshal encodes the Board as YAML or JSON.
func (b *Board) Marshal(asYAML bool) ([]byte, error) {
	if asYAML {
		return yaml.Marshal(b)
	}
	return json.MarshalIndent(b, "", "  ")
}

// Save writes the Board to a JSON or YAML file, chosen by extension.
func (b *Board) Save(path string) error {
	data, err := b.Marshal(isYAML(path))
	if err != nil {
		return fmt.Errorf("failed to serialize board config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write board config file: %w", err)
	}

	return nil
}

// SlogLevel parses LogLevel.
func (b *Board) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(b.LogLevel)); err != nil {
		return 0, fault.Config("config", "log_level %q: %v", b.LogLevel, err)
	}
	return level, nil
}

// Validate checks that the board can be built.
func (b *Board) Validate() error {
	if b.IntcSize < intc.Size {
		return fault.Config("config", "intc_size must be >= %#x", intc.Size)
	}
	if b.IntcBase%b.IntcSize != 0 {
		return fault.Config("config", "intc_base must be aligned to intc_size")
	}
	if b.TimerIRQ < 0 || b.TimerIRQ >= intc.NumLines {
		return fault.Config("config", "timer_irq %d out of range", b.TimerIRQ)
	}
	if b.GuestTimerIRQ < 0 || b.GuestTimerIRQ >= intc.NumLines {
		return fault.Config("config", "guest_timer_irq %d out of range", b.GuestTimerIRQ)
	}
	if b.TimerIRQ == b.GuestTimerIRQ {
		return fault.Config("config", "timer_irq and guest_timer_irq must differ")
	}
	if b.TimerPeriod == 0 {
		return fault.Config("config", "timer_period must be > 0")
	}
	if b.HighVectorsBase&0x1F != 0 {
		return fault.Config("config", "high_vectors_base must be 32-byte aligned")
	}
	if _, err := b.SlogLevel(); err != nil {
		return err
	}
	for _, c := range []struct {
		name string
		geo  CacheGeometry
	}{{"l1d", b.L1D}, {"l1i", b.L1I}, {"l2", b.L2}} {
		if err := c.geo.validate(c.name); err != nil {
			return err
		}
	}
	if b.TLBEntries <= 0 {
		return fault.Config("config", "tlb_entries must be > 0")
	}
	return nil
}

// Clone returns a copy of the Board.
func (b *Board) Clone() *Board {
	c := *b
	return &c
}
