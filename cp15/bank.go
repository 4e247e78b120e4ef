// Package cp15 emulates the ARMv7 system-control coprocessor.
//
// The bank is a flat table with one slot per (CRn, opc1, CRm, opc2) tuple.
// Slots that the reset table does not populate are invalid, and touching one
// is an undefined-register fault. Writes to modeled registers apply exactly
// one side effect, looked up in a static table.
package cp15

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/hyparm/fault"
)

type slot struct {
	value uint32
	valid bool
}

// Bank is one guest's CP15 register file.
type Bank struct {
	slots [NumSlots]slot

	mm     MemoryManager
	cop    Coprocessor
	logger *slog.Logger

	stats Stats
}

// Stats counts bank activity.
type Stats struct {
	Reads        uint64
	Writes       uint64
	Maintenance  uint64
	SCTLREffects uint64
}

// Entry is one valid register and its current value.
type Entry struct {
	Reg   Register
	Value uint32
}

// Option configures a Bank.
type Option func(*Bank)

// WithMemoryManager sets the collaborator notified by translation, domain
// and maintenance writes.
func WithMemoryManager(mm MemoryManager) Option {
	return func(b *Bank) {
		b.mm = mm
	}
}

// WithCoprocessor sets the physical coprocessor that mirrored registers are
// forwarded to.
func WithCoprocessor(c Coprocessor) Option {
	return func(b *Bank) {
		b.cop = c
	}
}

// WithLogger sets the logger used for register traces.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bank) {
		b.logger = l
	}
}

// New creates a bank holding reset values.
func New(opts ...Option) *Bank {
	b := &Bank{
		mm:     nopMemoryManager{},
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.cop == nil {
		b.cop = NewHostMirror()
	}

	b.Reset()
	return b
}

// resetValues lists every modeled register with its value at creation.
var resetValues = []Entry{
	{MIDR, 0x411FC083},
	{CTR, 0x80048004},
	{IDPFR0, 0x00000001},
	{MMFR0, 0x31100003},
	{MMFR1, 0x20000000},
	{CCSIDR, CCSIDRL1Data},
	{CLIDR, 0x0A000023},
	{CSSELR, 0},
	{SCTLR, 0x00C5187A},
	{ACTLR, 0x00000002},
	{TTBR0, 0},
	{TTBR1, 0},
	{TTBCR, 0},
	{DACR, 0x0000000F},
	{DFSR, 0},
	{IFSR, 0},
	{DFAR, 0},
	{IFAR, 0},
	{ICIALLU, 0},
	{ICIMVAU, 0},
	{CP15ISB, 0},
	{BPIALL, 0},
	{DCIMVAC, 0},
	{DCCMVAC, 0},
	{DCCSW, 0},
	{CP15DSB, 0},
	{CP15DMB, 0},
	{DCCMVAU, 0},
	{DCCIMVAC, 0},
	{DCCISW, 0},
	{ITLBIALL, 0},
	{ITLBIMVA, 0},
	{ITLBIASID, 0},
	{DTLBIALL, 0},
	{DTLBIMVA, 0},
	{DTLBIASID, 0},
	{TLBIALL, 0},
	{TLBIMVA, 0},
	{TLBIASID, 0},
	{PRRR, 0x00098AA4},
	{NMRR, 0x44E048E0},
	{VBAR, 0},
	{FCSEIDR, 0},
	{CONTEXTID, 0},
	{TPIDRURW, 0},
	{TPIDRURO, 0},
	{TPIDRPRW, 0},
}

// Reset invalidates every slot and reloads the reset values.
func (b *Bank) Reset() {
	b.slots = [NumSlots]slot{}
	for _, e := range resetValues {
		b.slots[e.Reg] = slot{value: e.Value, valid: true}
	}
	b.stats = Stats{}
}

// Valid reports whether reg holds a modeled value.
func (b *Bank) Valid(reg Register) bool {
	return int(reg) < NumSlots && b.slots[reg].valid
}

// Read returns the value of reg.
func (b *Bank) Read(reg Register) (uint32, error) {
	if !b.Valid(reg) {
		return 0, fault.Undefined("cp15", "read of undefined register %s", reg)
	}

	b.stats.Reads++
	value := b.slots[reg].value
	b.logger.Debug("cp15 read", "reg", reg.String(), "value", hex(value))
	return value, nil
}

// Write stores value into reg and applies the register's side effect.
func (b *Bank) Write(g Guest, reg Register, value uint32) error {
	if !b.Valid(reg) {
		return fault.Undefined("cp15", "write of undefined register %s", reg)
	}

	eff, ok := effects[reg]
	if ok {
		if err := eff.rejects(reg); err != nil {
			return err
		}
	}

	b.stats.Writes++
	old := b.slots[reg].value
	b.slots[reg] = slot{value: value, valid: true}
	b.logger.Debug("cp15 write", "reg", reg.String(), "old", hex(old), "value", hex(value))

	if !ok {
		return nil
	}
	return b.apply(eff, g, reg, old, value)
}

// ReadAt reads the register addressed by a coprocessor tuple.
func (b *Bank) ReadAt(crn, opc1, crm, opc2 uint32) (uint32, error) {
	reg, err := Index(crn, opc1, crm, opc2)
	if err != nil {
		return 0, err
	}
	return b.Read(reg)
}

// WriteAt writes the register addressed by a coprocessor tuple.
func (b *Bank) WriteAt(g Guest, crn, opc1, crm, opc2, value uint32) error {
	reg, err := Index(crn, opc1, crm, opc2)
	if err != nil {
		return err
	}
	return b.Write(g, reg, value)
}

// Snapshot returns every valid register in index order.
func (b *Bank) Snapshot() []Entry {
	var entries []Entry
	for i := range b.slots {
		if b.slots[i].valid {
			entries = append(entries, Entry{Reg: Register(i), Value: b.slots[i].value})
		}
	}
	return entries
}

// Stats returns bank statistics.
func (b *Bank) Stats() Stats {
	return b.stats
}

// store sets a slot without running its side effect.
func (b *Bank) store(reg Register, value uint32) {
	b.slots[reg] = slot{value: value, valid: true}
}

type hex uint32

func (h hex) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("0x%08X", uint32(h)))
}
