// Package vm assembles the virtualization core of one guest. A VM owns
// the guest context, the CP15 bank, the interrupt controller, the
// exception engine, the memory manager and the physical timer, and exposes
// the entry points the trap layer calls.
//
// Every entry point halts the VM on its first error. Once halted, all
// entry points return the same fault.ErrHalted error wrapping the cause.
package vm

import (
	"log/slog"

	"github.com/sarchlab/hyparm/config"
	"github.com/sarchlab/hyparm/cp15"
	"github.com/sarchlab/hyparm/exception"
	"github.com/sarchlab/hyparm/fault"
	"github.com/sarchlab/hyparm/guest"
	"github.com/sarchlab/hyparm/insts"
	"github.com/sarchlab/hyparm/intc"
	"github.com/sarchlab/hyparm/mmu"
	"github.com/sarchlab/hyparm/timer"
)

// Stats counts trap entries.
type Stats struct {
	CoprocTraps uint64
	Loads       uint64
	Stores      uint64
	Deliveries  uint64
}

// VM is the per-guest context.
type VM struct {
	board  *config.Board
	logger *slog.Logger

	guest   *guest.Context
	bank    *cp15.Bank
	intc    *intc.Controller
	engine  *exception.Engine
	mm      cp15.MemoryManager
	manager *mmu.Manager
	cop     cp15.Coprocessor
	timer   *timer.Periodic
	decoder *insts.Decoder
	devices []device

	halted error
	stats  Stats
}

// Option configures a VM.
type Option func(*VM)

// WithConfig sets the board configuration.
func WithConfig(b *config.Board) Option {
	return func(v *VM) {
		v.board = b
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(v *VM) {
		v.logger = l
	}
}

// WithMemoryManager replaces the built-in memory manager. Guest memory
// accesses are unavailable with a replacement.
func WithMemoryManager(mm cp15.MemoryManager) Option {
	return func(v *VM) {
		v.mm = mm
	}
}

// WithCoprocessor sets the physical coprocessor that mirrored CP15 writes
// go to.
func WithCoprocessor(c cp15.Coprocessor) Option {
	return func(v *VM) {
		v.cop = c
	}
}

// New creates a VM in the reset state.
func New(opts ...Option) (*VM, error) {
	v := &VM{
		board:   config.Default(),
		logger:  slog.New(slog.DiscardHandler),
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if err := v.board.Validate(); err != nil {
		return nil, err
	}

	if v.mm == nil {
		v.manager = mmu.New(
			mmu.WithLogger(v.logger.With("component", "mmu")),
			mmu.WithCaches(v.board.L1I.Cache(), v.board.L1D.Cache(), v.board.L2.Cache()),
			mmu.WithTLBEntries(v.board.TLBEntries),
		)
		v.mm = v.manager
	}
	if v.cop == nil {
		v.cop = cp15.NewHostMirror()
	}

	v.bank = cp15.New(
		cp15.WithMemoryManager(v.mm),
		cp15.WithCoprocessor(v.cop),
		cp15.WithLogger(v.logger.With("component", "cp15")),
	)
	v.guest = guest.NewContext(v.bank)

	// SCTLR watchers fire on edges only, so the reset A bit is applied here.
	sctlr, err := v.bank.Read(cp15.SCTLR)
	if err != nil {
		return nil, err
	}
	v.mm.SetAlignCheck(sctlr&cp15.SCTLRAlignCheck != 0)

	v.intc = intc.New(
		intc.WithLogger(v.logger.With("component", "intc")),
		intc.WithUnmaskHook(v.onUnmask),
	)
	v.engine = exception.New(
		exception.WithLogger(v.logger.With("component", "exception")),
		exception.WithHighVectorBase(v.board.HighVectorsBase),
		exception.WithTimerLines(v.board.TimerIRQ, v.board.GuestTimerIRQ),
	)

	t, err := timer.New(v.board.TimerIRQ, v.onTimer,
		timer.WithPeriod(v.board.TimerPeriod),
		timer.WithLogger(v.logger.With("component", "timer")),
	)
	if err != nil {
		return nil, err
	}
	v.timer = t

	v.devices = []device{
		{
			name:  "intc",
			base:  v.board.IntcBase,
			size:  v.board.IntcSize,
			load:  v.intc.Load,
			store: v.intc.Store,
		},
	}

	return v, nil
}

// Board returns the board configuration.
func (v *VM) Board() *config.Board { return v.board }

// Guest returns the guest context.
func (v *VM) Guest() *guest.Context { return v.guest }

// CP15 returns the register bank.
func (v *VM) CP15() *cp15.Bank { return v.bank }

// INTC returns the interrupt controller.
func (v *VM) INTC() *intc.Controller { return v.intc }

// Engine returns the exception engine.
func (v *VM) Engine() *exception.Engine { return v.engine }

// Timer returns the physical timer.
func (v *VM) Timer() *timer.Periodic { return v.timer }

// MMU returns the built-in memory manager, or nil when it was replaced.
func (v *VM) MMU() *mmu.Manager { return v.manager }

// Coprocessor returns the physical coprocessor.
func (v *VM) Coprocessor() cp15.Coprocessor { return v.cop }

// Stats returns trap statistics.
func (v *VM) Stats() Stats { return v.stats }

// Halted returns the halt error, or nil while the VM is running.
func (v *VM) Halted() error { return v.halted }

// halt records the first error and stops the VM.
func (v *VM) halt(err error) error {
	if err == nil {
		return nil
	}
	if v.halted == nil {
		v.halted = fault.Halted("vm", err)
		v.logger.Error("guest halted",
			"error", err,
			"kind", fault.KindOf(err).String(),
			"pc", v.guest.Regs.PC(),
			"cpsr", v.guest.Regs.CPSR,
		)
	}
	return v.halted
}

func (v *VM) onUnmask(irq int) {
	if irq == v.board.GuestTimerIRQ && !v.timer.Enabled() {
		v.logger.Debug("guest timer unmasked, starting physical timer")
		v.timer.Enable()
	}
}

func (v *VM) onTimer(irq int) error {
	return v.engine.TickEvent(v.guest, v.intc, irq)
}

// ReadCP15 reads a CP15 register on behalf of the guest.
func (v *VM) ReadCP15(reg cp15.Register) (uint32, error) {
	if v.halted != nil {
		return 0, v.halted
	}
	value, err := v.bank.Read(reg)
	if err != nil {
		return 0, v.halt(err)
	}
	return value, nil
}

// WriteCP15 writes a CP15 register on behalf of the guest.
func (v *VM) WriteCP15(reg cp15.Register, value uint32) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.bank.Write(v.guest, reg, value))
}

// SetInterrupt raises a line on the interrupt controller.
func (v *VM) SetInterrupt(irq int) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.intc.SetInterrupt(irq))
}

// ClearInterrupt lowers a line on the interrupt controller.
func (v *VM) ClearInterrupt(irq int) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.intc.ClearInterrupt(irq))
}

// RaiseInterrupt delivers a device interrupt and marks an IRQ pending for
// the guest when it can take one.
func (v *VM) RaiseInterrupt(irq int) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.engine.ThrowInterrupt(v.guest, v.intc, irq))
}

// Tick advances the physical timer by n cycles.
func (v *VM) Tick(n uint64) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.timer.RunCycles(n))
}

// ThrowDataAbort records a data abort for later delivery.
func (v *VM) ThrowDataAbort(address, faultType uint32, isWrite bool, domain uint32) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.engine.ThrowDataAbort(v.guest, address, faultType, isWrite, domain))
}

// ThrowPrefetchAbort records a prefetch abort for later delivery.
func (v *VM) ThrowPrefetchAbort(address, faultType uint32) error {
	if v.halted != nil {
		return v.halted
	}
	return v.halt(v.engine.ThrowPrefetchAbort(v.guest, address, faultType))
}

// ServiceCall enters the guest SVC handler.
func (v *VM) ServiceCall() error {
	if v.halted != nil {
		return v.halted
	}
	v.engine.DeliverServiceCall(v.guest)
	v.stats.Deliveries++
	return nil
}

// DeliverPending delivers at most one pending exception, in the order
// data abort, prefetch abort, IRQ. It reports whether one was delivered.
func (v *VM) DeliverPending() (bool, error) {
	if v.halted != nil {
		return false, v.halted
	}

	var err error
	switch {
	case v.guest.DataAbtPending:
		err = v.engine.DeliverAbort(v.guest)
	case v.guest.PrefetchAbtPending:
		err = v.engine.DeliverPrefetchAbort(v.guest)
	case v.guest.IrqPending:
		err = v.engine.DeliverInterrupt(v.guest)
	default:
		return false, nil
	}

	if err != nil {
		return false, v.halt(err)
	}
	v.stats.Deliveries++
	return true, nil
}
