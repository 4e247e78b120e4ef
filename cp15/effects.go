package cp15

import (
	"github.com/sarchlab/hyparm/fault"
)

type effectKind uint8

const (
	effectSCTLR effectKind = iota
	effectCSSELR
	effectTTBR0
	effectTTBR1
	effectTTBCR
	effectDACR
	effectMaintenance
	effectMirror
	effectContextID
	effectVBAR
	effectReadOnly
	effectFCSE
)

// effect is the tagged side effect of writing one register.
type effect struct {
	kind effectKind
	op   MaintenanceOp
}

// rejects returns the fault for a write that must not reach the register.
func (eff effect) rejects(reg Register) error {
	switch eff.kind {
	case effectReadOnly:
		return fault.Unmodeled("cp15", "write to read-only register %s", reg)
	case effectFCSE:
		return fault.Unmodeled("cp15", "fast context switch extension is not modeled")
	}
	return nil
}

// effects maps each register with a side effect to that effect. Registers
// absent from the table are plain stores.
var effects = map[Register]effect{
	SCTLR:     {kind: effectSCTLR},
	CSSELR:    {kind: effectCSSELR},
	TTBR0:     {kind: effectTTBR0},
	TTBR1:     {kind: effectTTBR1},
	TTBCR:     {kind: effectTTBCR},
	DACR:      {kind: effectDACR},
	PRRR:      {kind: effectMirror},
	NMRR:      {kind: effectMirror},
	TPIDRURO:  {kind: effectMirror},
	CONTEXTID: {kind: effectContextID},
	VBAR:      {kind: effectVBAR},
	FCSEIDR:   {kind: effectFCSE},

	MIDR:   {kind: effectReadOnly},
	CTR:    {kind: effectReadOnly},
	IDPFR0: {kind: effectReadOnly},
	MMFR0:  {kind: effectReadOnly},
	MMFR1:  {kind: effectReadOnly},
	CCSIDR: {kind: effectReadOnly},
	CLIDR:  {kind: effectReadOnly},

	ICIALLU:   {kind: effectMaintenance, op: OpInvalidateICache},
	ICIMVAU:   {kind: effectMaintenance, op: OpInvalidateICacheByMVA},
	CP15ISB:   {kind: effectMaintenance, op: OpInstructionSyncBarrier},
	BPIALL:    {kind: effectMaintenance, op: OpInvalidateBranchPredictor},
	DCIMVAC:   {kind: effectMaintenance, op: OpInvalidateDCacheByMVA},
	DCCMVAC:   {kind: effectMaintenance, op: OpCleanDCacheByMVA},
	DCCSW:     {kind: effectMaintenance, op: OpCleanDCacheBySetWay},
	CP15DSB:   {kind: effectMaintenance, op: OpDataSyncBarrier},
	CP15DMB:   {kind: effectMaintenance, op: OpDataMemoryBarrier},
	DCCMVAU:   {kind: effectMaintenance, op: OpCleanDCacheByMVAToPoU},
	DCCIMVAC:  {kind: effectMaintenance, op: OpCleanInvalidateDCacheByMVA},
	DCCISW:    {kind: effectMaintenance, op: OpCleanInvalidateDCacheBySetWay},
	ITLBIALL:  {kind: effectMaintenance, op: OpInvalidateITLB},
	ITLBIMVA:  {kind: effectMaintenance, op: OpInvalidateITLBByMVA},
	ITLBIASID: {kind: effectMaintenance, op: OpInvalidateITLBByASID},
	DTLBIALL:  {kind: effectMaintenance, op: OpInvalidateDTLB},
	DTLBIMVA:  {kind: effectMaintenance, op: OpInvalidateDTLBByMVA},
	DTLBIASID: {kind: effectMaintenance, op: OpInvalidateDTLBByASID},
	TLBIALL:   {kind: effectMaintenance, op: OpInvalidateUTLB},
	TLBIMVA:   {kind: effectMaintenance, op: OpInvalidateUTLBByMVA},
	TLBIASID:  {kind: effectMaintenance, op: OpInvalidateUTLBByASID},
}

func (b *Bank) apply(eff effect, g Guest, reg Register, old, value uint32) error {
	switch eff.kind {
	case effectSCTLR:
		return b.applySCTLR(g, old, value)

	case effectCSSELR:
		ccsidr, err := ccsidrFor(value)
		if err != nil {
			return err
		}
		b.store(CCSIDR, ccsidr)

	case effectTTBR0:
		n := b.slots[TTBCR].value & 0x7
		base := value &^ ((uint32(1) << (14 - n)) - 1)
		b.mm.SetPageTableBase(base)

	case effectTTBR1:
		b.logger.Warn("cp15: TTBR1 written, second translation table is not modeled",
			"value", hex(value))

	case effectTTBCR:
		if value&0x7 != 0 {
			return fault.Unmodeled("cp15", "TTBCR.N=%d, only N=0 is supported", value&0x7)
		}

	case effectDACR:
		if old != value {
			b.mm.ChangeDACR(old, value)
		}

	case effectMaintenance:
		b.stats.Maintenance++
		b.logger.Debug("cp15 maintenance", "op", eff.op.String(), "operand", hex(value))
		b.mm.Maintain(eff.op, value)

	case effectMirror:
		b.cop.WriteCP15(reg, value)

	case effectContextID:
		b.mm.SetContextID(value)

	case effectVBAR:
		b.store(VBAR, value&^0x1F)
	}

	return nil
}

func ccsidrFor(csselr uint32) (uint32, error) {
	switch csselr {
	case 0:
		return CCSIDRL1Data, nil
	case 1:
		return CCSIDRL1Instruction, nil
	case 2:
		return CCSIDRL2Unified, nil
	default:
		return 0, fault.Unmodeled("cp15", "CSSELR selector %#x has no cache", csselr)
	}
}
