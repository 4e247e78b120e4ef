package guest

import (
	"github.com/sarchlab/hyparm/cp15"
)

// ResetCPSR is the CPSR at reset: SVC mode with IRQ, FIQ and asynchronous
// aborts masked.
const ResetCPSR = uint32(ModeSVC) | PSRIRQMask | PSRFIQMask | PSRAbtMask

// Context is the per-VM CPU state the virtualization core operates on.
// Components borrow it for the duration of one trap; none of them copy it.
type Context struct {
	Regs RegFile
	CP15 *cp15.Bank

	// VirtAddrEnabled is set while the guest MMU is on.
	VirtAddrEnabled bool
	// HighVectors mirrors SCTLR.V.
	HighVectors bool

	IrqPending         bool
	DataAbtPending     bool
	PrefetchAbtPending bool
}

// NewContext creates a context in the reset state bound to bank.
func NewContext(bank *cp15.Bank) *Context {
	c := &Context{CP15: bank}
	c.Regs.CPSR = ResetCPSR
	return c
}

// SetHighVectors implements cp15.Guest.
func (c *Context) SetHighVectors(enabled bool) {
	c.HighVectors = enabled
}

// SetVirtAddrEnabled implements cp15.Guest.
func (c *Context) SetVirtAddrEnabled(enabled bool) {
	c.VirtAddrEnabled = enabled
}

// IRQsMasked reports whether CPSR.I is set.
func (c *Context) IRQsMasked() bool {
	return c.Regs.CPSR&PSRIRQMask != 0
}
