// Package intc models the guest-visible OMAP35xx interrupt controller.
//
// Each of the three banks keeps the raw input lines, the mask and the
// derived pending word. Pending is recomputed as raw &^ mask by every
// mutator, so observers never see a stale value.
package intc

import (
	"log/slog"

	"github.com/sarchlab/hyparm/fault"
)

// Reset values.
const (
	Revision           uint32 = 0x40
	resetMask          uint32 = 0xFFFFFFFF
	resetSIR           uint32 = 0xFFFFFF80
	resetPriorityLevel uint32 = 0xFFFFFFC0
	resetThreshold     uint32 = 0xFF
)

type bank struct {
	raw     uint32
	mask    uint32
	pending uint32

	// soft holds raw bits raised through ISR_SET.
	soft uint32
	// pendingFIQ is never populated; FIQ delivery is not modeled.
	pendingFIQ uint32
}

func (b *bank) derive() {
	b.pending = b.raw &^ b.mask
}

// Stats counts controller activity.
type Stats struct {
	Raised     uint64
	Cleared    uint64
	Sorts      uint64
	SoftResets uint64
	Loads      uint64
	Stores     uint64
}

// Controller is one VM's virtual interrupt controller.
type Controller struct {
	banks    [NumBanks]bank
	priority [NumLines]uint8
	fiqSteer [NumLines]bool

	sysconfig   uint32
	sysstatus   uint32
	sirIRQ      uint32
	sirFIQ      uint32
	control     uint32
	protection  uint32
	idle        uint32
	irqPriority uint32
	fiqPriority uint32
	threshold   uint32

	unmaskHook func(irq int)
	logger     *slog.Logger
	stats      Stats
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for controller traces.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithUnmaskHook registers a function called for every line the guest
// unmasks through the register interface.
func WithUnmaskHook(hook func(irq int)) Option {
	return func(c *Controller) {
		c.unmaskHook = hook
	}
}

// New creates a controller in its reset state.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Reset()
	return c
}

// Reset restores every register to its reset value and flags reset done
// in SYSSTATUS.
func (c *Controller) Reset() {
	for i := range c.banks {
		c.banks[i] = bank{mask: resetMask}
		c.banks[i].derive()
	}
	c.priority = [NumLines]uint8{}
	c.fiqSteer = [NumLines]bool{}

	c.sysconfig = 0
	c.sysstatus = sysstatusResetDone
	c.sirIRQ = resetSIR
	c.sirFIQ = resetSIR
	c.control = 0
	c.protection = 0
	c.idle = 0
	c.irqPriority = resetPriorityLevel
	c.fiqPriority = resetPriorityLevel
	c.threshold = resetThreshold
}

func checkLine(op string, irq int) error {
	if irq < 0 || irq >= NumLines {
		return fault.Config("intc", "%s: interrupt %d out of range", op, irq)
	}
	return nil
}

// SetInterrupt raises the raw input of irq.
func (c *Controller) SetInterrupt(irq int) error {
	if err := checkLine("set", irq); err != nil {
		return err
	}

	b, bit := locate(irq)
	c.banks[b].raw |= bit
	c.banks[b].derive()
	c.stats.Raised++
	c.logger.Debug("intc set", "irq", irq, "pending", c.banks[b].pending&bit != 0)
	return nil
}

// ClearInterrupt lowers the raw input of irq.
func (c *Controller) ClearInterrupt(irq int) error {
	if err := checkLine("clear", irq); err != nil {
		return err
	}

	b, bit := locate(irq)
	c.banks[b].raw &^= bit
	c.banks[b].soft &^= bit
	c.banks[b].derive()
	c.stats.Cleared++
	c.logger.Debug("intc clear", "irq", irq)
	return nil
}

// Mask masks irq.
func (c *Controller) Mask(irq int) error {
	if err := checkLine("mask", irq); err != nil {
		return err
	}

	b, bit := locate(irq)
	c.banks[b].mask |= bit
	c.banks[b].derive()
	return nil
}

// Unmask unmasks irq.
func (c *Controller) Unmask(irq int) error {
	if err := checkLine("unmask", irq); err != nil {
		return err
	}

	b, bit := locate(irq)
	c.banks[b].mask &^= bit
	c.banks[b].derive()
	return nil
}

// IsMasked reports whether irq is masked.
func (c *Controller) IsMasked(irq int) (bool, error) {
	if err := checkLine("is masked", irq); err != nil {
		return false, err
	}

	b, bit := locate(irq)
	return c.banks[b].mask&bit != 0, nil
}

// SetPriority sets the priority field of irq's ILR.
func (c *Controller) SetPriority(irq int, priority uint8) error {
	if err := checkLine("set priority", irq); err != nil {
		return err
	}
	if priority > 0x3F {
		return fault.Config("intc", "priority %d does not fit ILR", priority)
	}

	c.priority[irq] = priority
	return nil
}

// Priority returns the priority of irq.
func (c *Controller) Priority(irq int) (uint8, error) {
	if err := checkLine("priority", irq); err != nil {
		return 0, err
	}
	return c.priority[irq], nil
}

// IsIrqPending reports whether any unmasked line is raised.
func (c *Controller) IsIrqPending() bool {
	for i := range c.banks {
		if c.banks[i].pending != 0 {
			return true
		}
	}
	return false
}

// IsFiqPending reports whether any FIQ is pending. Nothing drives FIQs, so
// this is false unless a future source populates the FIQ words.
func (c *Controller) IsFiqPending() bool {
	for i := range c.banks {
		if c.banks[i].pendingFIQ != 0 {
			return true
		}
	}
	return false
}

// PrioritySortIrqs returns the pending line with the highest priority, or
// 0 if nothing is pending. Lines are scanned bank by bank from bit 0 up and
// a line replaces the current winner when its priority is greater than or
// equal to it, so ties go to the last line scanned.
func (c *Controller) PrioritySortIrqs() int {
	c.stats.Sorts++

	if !c.IsIrqPending() {
		return 0
	}

	best := -1
	var bestPriority uint8
	for b := range c.banks {
		pending := c.banks[b].pending
		if pending == 0 {
			continue
		}

		for i := 0; i < linesPerBank; i++ {
			if pending&(uint32(1)<<i) == 0 {
				continue
			}

			irq := b*linesPerBank + i
			if best < 0 || c.priority[irq] >= bestPriority {
				best = irq
				bestPriority = c.priority[irq]
			}
		}
	}

	c.logger.Debug("intc sort", "irq", best, "priority", bestPriority)
	return best
}

// The bank accessors below are for inspection. A bank outside
// 0..NumBanks-1 has no lines, so its words read as zero.

func (c *Controller) bankAt(b int) bank {
	if b < 0 || b >= NumBanks {
		return bank{}
	}
	return c.banks[b]
}

// Pending returns the pending word of a bank.
func (c *Controller) Pending(b int) uint32 { return c.bankAt(b).pending }

// Raw returns the raw input word of a bank.
func (c *Controller) Raw(b int) uint32 { return c.bankAt(b).raw }

// MaskBits returns the mask word of a bank.
func (c *Controller) MaskBits(b int) uint32 { return c.bankAt(b).mask }

// Stats returns controller statistics.
func (c *Controller) Stats() Stats {
	return c.stats
}
