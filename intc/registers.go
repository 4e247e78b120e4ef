package intc

import (
	"fmt"

	"github.com/sarchlab/hyparm/fault"
)

// Register offsets from the controller base.
const (
	OffRevision    uint32 = 0x00
	OffSysconfig   uint32 = 0x10
	OffSysstatus   uint32 = 0x14
	OffSIRIRQ      uint32 = 0x40
	OffSIRFIQ      uint32 = 0x44
	OffControl     uint32 = 0x48
	OffProtection  uint32 = 0x4C
	OffIdle        uint32 = 0x50
	OffIRQPriority uint32 = 0x60
	OffFIQPriority uint32 = 0x64
	OffThreshold   uint32 = 0x68
	OffITR         uint32 = 0x80
	OffMIR         uint32 = 0x84
	OffMIRClear    uint32 = 0x88
	OffMIRSet      uint32 = 0x8C
	OffISRSet      uint32 = 0x90
	OffISRClear    uint32 = 0x94
	OffPendingIRQ  uint32 = 0x98
	OffPendingFIQ  uint32 = 0x9C
	OffILR         uint32 = 0x100

	bankStride uint32 = 0x20
	ilrStride  uint32 = 0x4
)

// Register field bits.
const (
	SysconfigAutoIdle  uint32 = 1 << 0
	SysconfigSoftReset uint32 = 1 << 1

	sysstatusResetDone uint32 = 1 << 0

	ControlNewIRQAgr uint32 = 1 << 0
	ControlNewFIQAgr uint32 = 1 << 1

	ilrFIQnIRQ       uint32 = 1 << 0
	ilrPriorityShift        = 2
	ilrPriorityMask  uint32 = 0x3F
)

// Size is the length of the register window.
const Size uint32 = 0x1000

// register describes one named register, replicated count times at stride.
// A nil load marks it write-only and a nil store read-only.
type register struct {
	name   string
	offset uint32
	count  int
	stride uint32
	load   func(c *Controller, i int) uint32
	store  func(c *Controller, i int, v uint32)
}

var registerTable = []register{
	{name: "REVISION", offset: OffRevision, count: 1,
		load: func(*Controller, int) uint32 { return Revision }},
	{name: "SYSCONFIG", offset: OffSysconfig, count: 1,
		load:  func(c *Controller, _ int) uint32 { return c.sysconfig },
		store: (*Controller).storeSysconfig},
	{name: "SYSSTATUS", offset: OffSysstatus, count: 1,
		load: (*Controller).loadSysstatus},
	{name: "SIR_IRQ", offset: OffSIRIRQ, count: 1,
		load: (*Controller).loadSIRIRQ},
	{name: "SIR_FIQ", offset: OffSIRFIQ, count: 1,
		load: func(c *Controller, _ int) uint32 { return c.sirFIQ }},
	{name: "CONTROL", offset: OffControl, count: 1,
		load:  func(c *Controller, _ int) uint32 { return c.control },
		store: func(c *Controller, _ int, v uint32) { c.control = v }},
	{name: "PROTECTION", offset: OffProtection, count: 1,
		load:  func(c *Controller, _ int) uint32 { return c.protection },
		store: func(c *Controller, _ int, v uint32) { c.protection = v }},
	{name: "IDLE", offset: OffIdle, count: 1,
		load:  func(c *Controller, _ int) uint32 { return c.idle },
		store: func(c *Controller, _ int, v uint32) { c.idle = v }},
	{name: "IRQ_PRIORITY", offset: OffIRQPriority, count: 1,
		load: func(c *Controller, _ int) uint32 { return c.irqPriority }},
	{name: "FIQ_PRIORITY", offset: OffFIQPriority, count: 1,
		load: func(c *Controller, _ int) uint32 { return c.fiqPriority }},
	{name: "THRESHOLD", offset: OffThreshold, count: 1,
		load:  func(c *Controller, _ int) uint32 { return c.threshold },
		store: func(c *Controller, _ int, v uint32) { c.threshold = v }},
	{name: "ITR", offset: OffITR, count: NumBanks, stride: bankStride,
		load: func(c *Controller, i int) uint32 { return c.banks[i].raw }},
	{name: "MIR", offset: OffMIR, count: NumBanks, stride: bankStride,
		load: func(c *Controller, i int) uint32 { return c.banks[i].mask },
		store: func(c *Controller, i int, v uint32) {
			c.writeMask(i, v)
		}},
	{name: "MIR_CLEAR", offset: OffMIRClear, count: NumBanks, stride: bankStride,
		store: func(c *Controller, i int, v uint32) {
			c.writeMask(i, c.banks[i].mask&^v)
		}},
	{name: "MIR_SET", offset: OffMIRSet, count: NumBanks, stride: bankStride,
		store: func(c *Controller, i int, v uint32) {
			c.writeMask(i, c.banks[i].mask|v)
		}},
	{name: "ISR_SET", offset: OffISRSet, count: NumBanks, stride: bankStride,
		load: func(c *Controller, i int) uint32 { return c.banks[i].soft },
		store: func(c *Controller, i int, v uint32) {
			b := &c.banks[i]
			b.soft |= v
			b.raw |= v
			b.derive()
		}},
	{name: "ISR_CLEAR", offset: OffISRClear, count: NumBanks, stride: bankStride,
		store: func(c *Controller, i int, v uint32) {
			b := &c.banks[i]
			b.raw &^= v & b.soft
			b.soft &^= v
			b.derive()
		}},
	{name: "PENDING_IRQ", offset: OffPendingIRQ, count: NumBanks, stride: bankStride,
		load: func(c *Controller, i int) uint32 { return c.banks[i].pending }},
	{name: "PENDING_FIQ", offset: OffPendingFIQ, count: NumBanks, stride: bankStride,
		load: func(c *Controller, i int) uint32 { return c.banks[i].pendingFIQ }},
	{name: "ILR", offset: OffILR, count: NumLines, stride: ilrStride,
		load:  (*Controller).loadILR,
		store: (*Controller).storeILR},
}

type registerRef struct {
	reg   *register
	index int
}

// registerMap resolves an offset to its register instance.
var registerMap = buildRegisterMap()

func buildRegisterMap() map[uint32]registerRef {
	m := make(map[uint32]registerRef)
	for r := range registerTable {
		reg := &registerTable[r]
		for i := 0; i < reg.count; i++ {
			off := reg.offset + uint32(i)*reg.stride
			if _, dup := m[off]; dup {
				panic(fmt.Sprintf("intc: register %s overlaps offset %#x", reg.name, off))
			}
			m[off] = registerRef{reg: reg, index: i}
		}
	}
	return m
}

func (r registerRef) name() string {
	if r.reg.count == 1 {
		return r.reg.name
	}
	return fmt.Sprintf("%s%d", r.reg.name, r.index)
}

// Load reads the register at offset. Only word accesses are modeled.
func (c *Controller) Load(offset uint32, size int) (uint32, error) {
	if size != 4 {
		return 0, fault.Config("intc", "%d-byte load at %#x, only word access is allowed", size, offset)
	}

	ref, ok := registerMap[offset]
	if !ok {
		return 0, fault.Unmodeled("intc", "load from unmodeled offset %#x", offset)
	}
	if ref.reg.load == nil {
		return 0, fault.Unmodeled("intc", "load from write-only register %s", ref.name())
	}

	c.stats.Loads++
	v := ref.reg.load(c, ref.index)
	c.logger.Debug("intc load", "reg", ref.name(), "value", v)
	return v, nil
}

// Store writes the register at offset. Only word accesses are modeled.
func (c *Controller) Store(offset uint32, size int, value uint32) error {
	if size != 4 {
		return fault.Config("intc", "%d-byte store at %#x, only word access is allowed", size, offset)
	}

	ref, ok := registerMap[offset]
	if !ok {
		return fault.Unmodeled("intc", "store to unmodeled offset %#x", offset)
	}
	if ref.reg.store == nil {
		return fault.Unmodeled("intc", "store to read-only register %s", ref.name())
	}

	c.stats.Stores++
	c.logger.Debug("intc store", "reg", ref.name(), "value", value)
	ref.reg.store(c, ref.index, value)
	return nil
}

func (c *Controller) storeSysconfig(_ int, v uint32) {
	if v&SysconfigSoftReset != 0 {
		c.logger.Debug("intc soft reset")
		c.Reset()
		c.stats.SoftResets++
	}
	c.sysconfig = v & SysconfigAutoIdle
}

func (c *Controller) loadSysstatus(_ int) uint32 {
	v := c.sysstatus
	c.sysstatus &^= sysstatusResetDone
	return v
}

func (c *Controller) loadSIRIRQ(_ int) uint32 {
	irq := c.PrioritySortIrqs()
	c.sirIRQ = uint32(irq)
	if c.IsIrqPending() {
		c.irqPriority = uint32(c.priority[irq])
	}
	return c.sirIRQ
}

func (c *Controller) loadILR(i int) uint32 {
	v := uint32(c.priority[i]) << ilrPriorityShift
	if c.fiqSteer[i] {
		v |= ilrFIQnIRQ
	}
	return v
}

func (c *Controller) storeILR(i int, v uint32) {
	c.priority[i] = uint8((v >> ilrPriorityShift) & ilrPriorityMask)
	c.fiqSteer[i] = v&ilrFIQnIRQ != 0
}

// writeMask replaces a bank's mask and reports every newly unmasked line to
// the unmask hook.
func (c *Controller) writeMask(i int, mask uint32) {
	b := &c.banks[i]
	unmasked := b.mask &^ mask
	b.mask = mask
	b.derive()

	if c.unmaskHook == nil || unmasked == 0 {
		return
	}
	for bit := 0; bit < linesPerBank; bit++ {
		if unmasked&(uint32(1)<<bit) != 0 {
			c.unmaskHook(i*linesPerBank + bit)
		}
	}
}
