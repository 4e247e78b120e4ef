package cp15

import (
	"fmt"

	"github.com/sarchlab/hyparm/fault"
)

// NumSlots is the size of the register table: every (CRn, opc1, CRm, opc2)
// combination has its own slot.
const NumSlots = 16 * 8 * 16 * 8

// Register identifies one slot of the register table.
// The index is ((CRn*8+opc1)*16+CRm)*8+opc2.
type Register uint16

func encode(crn, opc1, crm, opc2 uint32) Register {
	return Register(((crn*8+opc1)*16+crm)*8 + opc2)
}

// Index computes the register for a coprocessor tuple. Coordinates that do
// not fit their instruction fields are a configuration error.
func Index(crn, opc1, crm, opc2 uint32) (Register, error) {
	if crn > 15 || opc1 > 7 || crm > 15 || opc2 > 7 {
		return 0, fault.Config("cp15", "tuple c%d,%d,c%d,%d out of range", crn, opc1, crm, opc2)
	}
	return encode(crn, opc1, crm, opc2), nil
}

// Coords decodes the register back into its coprocessor tuple.
func (r Register) Coords() (crn, opc1, crm, opc2 uint32) {
	v := uint32(r)
	return (v >> 10) & 0xF, (v >> 7) & 0x7, (v >> 3) & 0xF, v & 0x7
}

// String returns the architectural name, or the raw tuple for unnamed slots.
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	crn, opc1, crm, opc2 := r.Coords()
	return fmt.Sprintf("c%d,%d,c%d,%d", crn, opc1, crm, opc2)
}

// Identification and configuration registers.
const (
	MIDR   = Register(0<<10 | 0<<7 | 0<<3 | 0)
	CTR    = Register(0<<10 | 0<<7 | 0<<3 | 1)
	IDPFR0 = Register(0<<10 | 0<<7 | 1<<3 | 0)
	MMFR0  = Register(0<<10 | 0<<7 | 1<<3 | 4)
	MMFR1  = Register(0<<10 | 0<<7 | 1<<3 | 5)
	CCSIDR = Register(0<<10 | 1<<7 | 0<<3 | 0)
	CLIDR  = Register(0<<10 | 1<<7 | 0<<3 | 1)
	CSSELR = Register(0<<10 | 2<<7 | 0<<3 | 0)

	SCTLR = Register(1<<10 | 0<<7 | 0<<3 | 0)
	ACTLR = Register(1<<10 | 0<<7 | 0<<3 | 1)

	TTBR0 = Register(2<<10 | 0<<7 | 0<<3 | 0)
	TTBR1 = Register(2<<10 | 0<<7 | 0<<3 | 1)
	TTBCR = Register(2<<10 | 0<<7 | 0<<3 | 2)
	DACR  = Register(3<<10 | 0<<7 | 0<<3 | 0)

	DFSR = Register(5<<10 | 0<<7 | 0<<3 | 0)
	IFSR = Register(5<<10 | 0<<7 | 0<<3 | 1)
	DFAR = Register(6<<10 | 0<<7 | 0<<3 | 0)
	IFAR = Register(6<<10 | 0<<7 | 0<<3 | 2)

	PRRR = Register(10<<10 | 0<<7 | 2<<3 | 0)
	NMRR = Register(10<<10 | 0<<7 | 2<<3 | 1)
	VBAR = Register(12<<10 | 0<<7 | 0<<3 | 0)

	FCSEIDR   = Register(13<<10 | 0<<7 | 0<<3 | 0)
	CONTEXTID = Register(13<<10 | 0<<7 | 0<<3 | 1)
	TPIDRURW  = Register(13<<10 | 0<<7 | 0<<3 | 2)
	TPIDRURO  = Register(13<<10 | 0<<7 | 0<<3 | 3)
	TPIDRPRW  = Register(13<<10 | 0<<7 | 0<<3 | 4)
)

// Cache, barrier and TLB maintenance registers (write-only operations).
const (
	ICIALLU  = Register(7<<10 | 0<<7 | 5<<3 | 0)
	ICIMVAU  = Register(7<<10 | 0<<7 | 5<<3 | 1)
	CP15ISB  = Register(7<<10 | 0<<7 | 5<<3 | 4)
	BPIALL   = Register(7<<10 | 0<<7 | 5<<3 | 6)
	DCIMVAC  = Register(7<<10 | 0<<7 | 6<<3 | 1)
	DCCMVAC  = Register(7<<10 | 0<<7 | 10<<3 | 1)
	DCCSW    = Register(7<<10 | 0<<7 | 10<<3 | 2)
	CP15DSB  = Register(7<<10 | 0<<7 | 10<<3 | 4)
	CP15DMB  = Register(7<<10 | 0<<7 | 10<<3 | 5)
	DCCMVAU  = Register(7<<10 | 0<<7 | 11<<3 | 1)
	DCCIMVAC = Register(7<<10 | 0<<7 | 14<<3 | 1)
	DCCISW   = Register(7<<10 | 0<<7 | 14<<3 | 2)

	ITLBIALL  = Register(8<<10 | 0<<7 | 5<<3 | 0)
	ITLBIMVA  = Register(8<<10 | 0<<7 | 5<<3 | 1)
	ITLBIASID = Register(8<<10 | 0<<7 | 5<<3 | 2)
	DTLBIALL  = Register(8<<10 | 0<<7 | 6<<3 | 0)
	DTLBIMVA  = Register(8<<10 | 0<<7 | 6<<3 | 1)
	DTLBIASID = Register(8<<10 | 0<<7 | 6<<3 | 2)
	TLBIALL   = Register(8<<10 | 0<<7 | 7<<3 | 0)
	TLBIMVA   = Register(8<<10 | 0<<7 | 7<<3 | 1)
	TLBIASID  = Register(8<<10 | 0<<7 | 7<<3 | 2)
)

// SCTLR bits.
const (
	SCTLRMMUEnable   uint32 = 1 << 0
	SCTLRAlignCheck  uint32 = 1 << 1
	SCTLRHighVectors uint32 = 1 << 13
	SCTLRHWAccess    uint32 = 1 << 17
	SCTLRVE          uint32 = 1 << 24
	SCTLRTEXRemap    uint32 = 1 << 28
	SCTLRAccessFlag  uint32 = 1 << 29
)

// CCSIDR values reported for each CSSELR selector.
const (
	CCSIDRL1Data        uint32 = 0xE007E01A
	CCSIDRL1Instruction uint32 = 0x2007E01A
	CCSIDRL2Unified     uint32 = 0xF03FE03A
)

var registerNames = map[Register]string{
	MIDR: "MIDR", CTR: "CTR", IDPFR0: "ID_PFR0", MMFR0: "ID_MMFR0",
	MMFR1: "ID_MMFR1", CCSIDR: "CCSIDR", CLIDR: "CLIDR", CSSELR: "CSSELR",
	SCTLR: "SCTLR", ACTLR: "ACTLR",
	TTBR0: "TTBR0", TTBR1: "TTBR1", TTBCR: "TTBCR", DACR: "DACR",
	DFSR: "DFSR", IFSR: "IFSR", DFAR: "DFAR", IFAR: "IFAR",
	ICIALLU: "ICIALLU", ICIMVAU: "ICIMVAU", CP15ISB: "CP15ISB",
	BPIALL: "BPIALL", DCIMVAC: "DCIMVAC", DCCMVAC: "DCCMVAC",
	DCCSW: "DCCSW", CP15DSB: "CP15DSB", CP15DMB: "CP15DMB",
	DCCMVAU: "DCCMVAU", DCCIMVAC: "DCCIMVAC", DCCISW: "DCCISW",
	ITLBIALL: "ITLBIALL", ITLBIMVA: "ITLBIMVA", ITLBIASID: "ITLBIASID",
	DTLBIALL: "DTLBIALL", DTLBIMVA: "DTLBIMVA", DTLBIASID: "DTLBIASID",
	TLBIALL: "TLBIALL", TLBIMVA: "TLBIMVA", TLBIASID: "TLBIASID",
	PRRR: "PRRR", NMRR: "NMRR", VBAR: "VBAR",
	FCSEIDR: "FCSEIDR", CONTEXTID: "CONTEXTIDR",
	TPIDRURW: "TPIDRURW", TPIDRURO: "TPIDRURO", TPIDRPRW: "TPIDRPRW",
}
