package vm

import (
	"github.com/sarchlab/hyparm/fault"
	"github.com/sarchlab/hyparm/guest"
	"github.com/sarchlab/hyparm/insts"
	"github.com/sarchlab/hyparm/loader"
)

// FaultAlignment is the short-descriptor fault status of an alignment fault.
const FaultAlignment = 0x1

// device is one entry of the guest physical address map.
type device struct {
	name  string
	base  uint32
	size  uint32
	load  func(offset uint32, size int) (uint32, error)
	store func(offset uint32, size int, value uint32) error
}

func (d *device) contains(addr uint32) bool {
	return addr >= d.base && addr-d.base < d.size
}

func (v *VM) deviceAt(addr uint32) (*device, error) {
	for i := range v.devices {
		if v.devices[i].contains(addr) {
			return &v.devices[i], nil
		}
	}
	return nil, fault.Unmodeled("vm", "no device at %#08x", addr)
}

// ExecuteCoproc emulates a trapped coprocessor instruction at the guest PC
// and advances the PC past it. Only MCR and MRC to CP15 are modeled.
func (v *VM) ExecuteCoproc(word uint32) error {
	if v.halted != nil {
		return v.halted
	}
	v.stats.CoprocTraps++
	return v.halt(v.executeCoproc(word))
}

func (v *VM) executeCoproc(word uint32) error {
	inst := v.decoder.Decode(word)
	if inst.Op != insts.OpMCR && inst.Op != insts.OpMRC {
		return fault.Unmodeled("vm", "coprocessor instruction %#08x (%s)", word, inst.Op)
	}
	if inst.Coproc != 15 {
		return fault.Unmodeled("vm", "%s to coprocessor p%d", inst.Op, inst.Coproc)
	}
	if inst.Rt == guest.PC {
		return fault.Unmodeled("vm", "%s with r15", inst.Op)
	}

	regs := &v.guest.Regs
	pc := regs.PC()

	if !inst.Unconditional && !regs.ConditionPassed(guest.Cond(inst.Cond)) {
		regs.SetPC(pc + 4)
		return nil
	}

	crn, opc1, crm, opc2 := uint32(inst.CRn), uint32(inst.Opc1), uint32(inst.CRm), uint32(inst.Opc2)

	switch inst.Op {
	case insts.OpMCR:
		if err := v.bank.WriteAt(v.guest, crn, opc1, crm, opc2, regs.ReadReg(inst.Rt)); err != nil {
			return err
		}
	case insts.OpMRC:
		value, err := v.bank.ReadAt(crn, opc1, crm, opc2)
		if err != nil {
			return err
		}
		regs.WriteReg(inst.Rt, value)
	}

	regs.SetPC(pc + 4)
	return nil
}

func checkSize(size int) error {
	switch size {
	case 1, 2, 4:
		return nil
	}
	return fault.Config("vm", "access size %d", size)
}

// Load emulates a trapped guest load from a device register.
func (v *VM) Load(addr uint32, size int) (uint32, error) {
	if v.halted != nil {
		return 0, v.halted
	}
	v.stats.Loads++

	d, err := v.deviceAt(addr)
	if err != nil {
		return 0, v.halt(err)
	}
	value, err := d.load(addr-d.base, size)
	if err != nil {
		return 0, v.halt(err)
	}
	return value, nil
}

// Store emulates a trapped guest store to a device register.
func (v *VM) Store(addr uint32, size int, value uint32) error {
	if v.halted != nil {
		return v.halted
	}
	v.stats.Stores++

	d, err := v.deviceAt(addr)
	if err != nil {
		return v.halt(err)
	}
	return v.halt(d.store(addr-d.base, size, value))
}

// ReadMemory loads from guest RAM through the cache hierarchy. A misaligned
// access with alignment checking on throws a data abort and returns 0.
func (v *VM) ReadMemory(addr uint32, size int) (uint32, error) {
	if v.halted != nil {
		return 0, v.halted
	}
	if err := v.memoryCheck(size); err != nil {
		return 0, v.halt(err)
	}

	value, ok := v.manager.Read(addr, size)
	if !ok {
		return 0, v.ThrowDataAbort(addr, FaultAlignment, false, 0)
	}
	return value, nil
}

// WriteMemory stores to guest RAM through the cache hierarchy. A misaligned
// access with alignment checking on throws a data abort.
func (v *VM) WriteMemory(addr uint32, size int, value uint32) error {
	if v.halted != nil {
		return v.halted
	}
	if err := v.memoryCheck(size); err != nil {
		return v.halt(err)
	}

	if !v.manager.Write(addr, size, value) {
		return v.ThrowDataAbort(addr, FaultAlignment, true, 0)
	}
	return nil
}

func (v *VM) memoryCheck(size int) error {
	if v.manager == nil {
		return fault.Unmodeled("vm", "guest memory access without the built-in memory manager")
	}
	return checkSize(size)
}

// LoadImage places a guest image in RAM and points the PC at its entry.
func (v *VM) LoadImage(img *loader.Image) error {
	if v.halted != nil {
		return v.halted
	}
	if v.manager == nil {
		return v.halt(fault.Unmodeled("vm", "image load without the built-in memory manager"))
	}

	img.LoadInto(v.manager.RAM())
	v.guest.Regs.SetPC(img.EntryPoint)
	v.logger.Info("guest image loaded",
		"entry", img.EntryPoint, "segments", len(img.Segments), "bytes", img.Size())
	return nil
}
