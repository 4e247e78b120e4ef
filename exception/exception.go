// Package exception injects exceptions into a guest context.
//
// Throw* functions record a fault or interrupt and raise the matching
// pending flag. Deliver* functions perform the exception entry: they bank
// the CPSR, switch mode, set the link register and branch to the vector.
package exception

import (
	"log/slog"

	"github.com/sarchlab/hyparm/cp15"
	"github.com/sarchlab/hyparm/fault"
	"github.com/sarchlab/hyparm/guest"
	"github.com/sarchlab/hyparm/intc"
)

// Vector offsets from the vector base.
const (
	VectorUndefined     uint32 = 0x04
	VectorServiceCall   uint32 = 0x08
	VectorPrefetchAbort uint32 = 0x0C
	VectorDataAbort     uint32 = 0x10
	VectorIRQ           uint32 = 0x18
	VectorFIQ           uint32 = 0x1C
)

// DefaultHighVectorBase is the vector base when SCTLR.V is set.
const DefaultHighVectorBase uint32 = 0xFFFF0000

// Link register offsets from the faulting or interrupted PC.
const (
	lrOffsetIRQ           uint32 = 4
	lrOffsetDataAbort     uint32 = 8
	lrOffsetPrefetchAbort uint32 = 4
	lrOffsetServiceCall   uint32 = 4
)

// Status register bits.
const (
	fsrWrite uint32 = 1 << 11
)

// Stats counts injected exceptions.
type Stats struct {
	Interrupts     uint64
	DataAborts     uint64
	PrefetchAborts uint64
	ServiceCalls   uint64
	Ticks          uint64
	Dropped        uint64
}

// Engine performs exception entry for one VM.
type Engine struct {
	highVectorBase uint32
	physicalTimer  int
	guestTimer     int
	sources        map[int]bool

	logger *slog.Logger
	stats  Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithHighVectorBase overrides the vector base used when high vectors are
// enabled.
func WithHighVectorBase(base uint32) Option {
	return func(e *Engine) {
		e.highVectorBase = base
	}
}

// WithTimerLines sets the physical timer line that drives tick events and
// the guest line it is reflected on.
func WithTimerLines(physical, guestLine int) Option {
	return func(e *Engine) {
		e.physicalTimer = physical
		e.guestTimer = guestLine
	}
}

// New creates an engine for the OMAP35xx board layout.
func New(opts ...Option) *Engine {
	e := &Engine{
		highVectorBase: DefaultHighVectorBase,
		physicalTimer:  intc.IRQGPT2,
		guestTimer:     intc.IRQGPT1,
		logger:         slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.sources = map[int]bool{
		e.guestTimer:  true,
		intc.IRQUART1: true,
		intc.IRQUART2: true,
		intc.IRQUART3: true,
		intc.IRQI2C1:  true,
		intc.IRQI2C2:  true,
		intc.IRQI2C3:  true,
		intc.IRQMMC1:  true,
		intc.IRQMMC2:  true,
		intc.IRQMMC3:  true,
		intc.IRQSDMA0: true,
		intc.IRQSDMA1: true,
		intc.IRQSDMA2: true,
		intc.IRQSDMA3: true,
	}

	return e
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	return e.stats
}

// VectorBase returns the exception vector base for g.
func (e *Engine) VectorBase(g *guest.Context) uint32 {
	if g.HighVectors {
		return e.highVectorBase
	}
	return 0
}

// enter performs the common part of exception entry.
func (e *Engine) enter(g *guest.Context, mode guest.Mode, lrOffset, vector, maskBits uint32) {
	regs := &g.Regs
	pc := regs.PC()

	// Exception modes always bank an SPSR.
	_ = regs.SetSPSR(mode, regs.CPSR)
	regs.ChangeMode(mode)
	regs.CPSR |= guest.PSRIRQMask
	regs.SetBanked(mode, guest.LR, pc+lrOffset)
	regs.SetPC(e.VectorBase(g) + vector)
	regs.CPSR |= maskBits
}

// DeliverInterrupt enters the guest IRQ handler. The guest must have an
// IRQ pending and its MMU enabled.
func (e *Engine) DeliverInterrupt(g *guest.Context) error {
	if !g.IrqPending {
		return fault.Config("exception", "deliver interrupt with no interrupt pending")
	}
	if !g.VirtAddrEnabled {
		return fault.Unmodeled("exception", "deliver interrupt with guest virtual memory off")
	}

	g.IrqPending = false
	pc := g.Regs.PC()
	e.enter(g, guest.ModeIRQ, lrOffsetIRQ, VectorIRQ, guest.PSRFIQMask)
	e.stats.Interrupts++
	e.logger.Debug("deliver irq", "pc", pc, "vector", g.Regs.PC())
	return nil
}

// DeliverAbort enters the guest data abort handler.
func (e *Engine) DeliverAbort(g *guest.Context) error {
	if !g.DataAbtPending {
		return fault.Config("exception", "deliver data abort with no abort pending")
	}
	if !g.VirtAddrEnabled {
		return fault.Unmodeled("exception", "deliver data abort with guest virtual memory off")
	}

	g.DataAbtPending = false
	pc := g.Regs.PC()
	e.enter(g, guest.ModeABT, lrOffsetDataAbort, VectorDataAbort, guest.PSRFIQMask)
	e.stats.DataAborts++
	e.logger.Debug("deliver data abort", "pc", pc, "vector", g.Regs.PC())
	return nil
}

// DeliverPrefetchAbort enters the guest prefetch abort handler.
func (e *Engine) DeliverPrefetchAbort(g *guest.Context) error {
	if !g.PrefetchAbtPending {
		return fault.Config("exception", "deliver prefetch abort with no abort pending")
	}

	g.PrefetchAbtPending = false
	pc := g.Regs.PC()
	e.enter(g, guest.ModeABT, lrOffsetPrefetchAbort, VectorPrefetchAbort, guest.PSRAbtMask)
	e.stats.PrefetchAborts++
	e.logger.Debug("deliver prefetch abort", "pc", pc, "vector", g.Regs.PC())
	return nil
}

// DeliverServiceCall enters the guest SVC handler for an SVC instruction
// at the current PC.
func (e *Engine) DeliverServiceCall(g *guest.Context) {
	pc := g.Regs.PC()
	e.enter(g, guest.ModeSVC, lrOffsetServiceCall, VectorServiceCall, 0)
	e.stats.ServiceCalls++
	e.logger.Debug("deliver svc", "pc", pc)
}

// DataFaultStatus encodes a DFSR value.
func DataFaultStatus(faultType uint32, isWrite bool, domain uint32) uint32 {
	dfsr := (faultType & 0xF) | ((faultType & 0x10) << 6) | (domain << 4)
	if isWrite {
		dfsr |= fsrWrite
	}
	return dfsr
}

// ThrowDataAbort records a data abort in DFSR and DFAR and marks it
// pending. The guest stays in its current mode until DeliverAbort.
func (e *Engine) ThrowDataAbort(g *guest.Context, address, faultType uint32, isWrite bool, domain uint32) error {
	dfsr := DataFaultStatus(faultType, isWrite, domain)
	if err := g.CP15.Write(g, cp15.DFSR, dfsr); err != nil {
		return err
	}
	if err := g.CP15.Write(g, cp15.DFAR, address); err != nil {
		return err
	}

	g.DataAbtPending = true
	e.logger.Debug("throw data abort", "address", address, "dfsr", dfsr)
	return nil
}

// ThrowPrefetchAbort records a prefetch abort in IFSR and IFAR and marks it
// pending.
func (e *Engine) ThrowPrefetchAbort(g *guest.Context, address, faultType uint32) error {
	ifsr := (faultType & 0xF) | ((faultType & 0x10) << 6)
	if err := g.CP15.Write(g, cp15.IFSR, ifsr); err != nil {
		return err
	}
	if err := g.CP15.Write(g, cp15.IFAR, address); err != nil {
		return err
	}

	g.PrefetchAbtPending = true
	e.logger.Debug("throw prefetch abort", "address", address, "ifsr", ifsr)
	return nil
}

// TickEvent handles an expiry of the physical timer: the guest timer line
// is raised and, if the guest has IRQs enabled, an IRQ becomes pending.
func (e *Engine) TickEvent(g *guest.Context, ic *intc.Controller, irq int) error {
	if irq != e.physicalTimer {
		return fault.Unmodeled("exception", "tick event from unknown timer line %d", irq)
	}

	if err := ic.SetInterrupt(e.guestTimer); err != nil {
		return err
	}
	e.stats.Ticks++

	if !g.IRQsMasked() {
		g.IrqPending = true
	}
	return nil
}

// ThrowInterrupt raises a device interrupt line. The guest gets an IRQ
// pending only if the controller has something pending and CPSR.I is clear.
func (e *Engine) ThrowInterrupt(g *guest.Context, ic *intc.Controller, irq int) error {
	if !e.sources[irq] {
		return fault.Unmodeled("exception", "interrupt from unknown source %d", irq)
	}

	if err := ic.SetInterrupt(irq); err != nil {
		return err
	}

	if ic.IsIrqPending() && !g.IRQsMasked() {
		g.IrqPending = true
		return nil
	}

	e.stats.Dropped++
	e.logger.Debug("guest not ready for irq", "irq", irq)
	return nil
}
