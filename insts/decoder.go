// Package insts provides ARM coprocessor instruction definitions and decoding.
package insts

// Op represents a coprocessor opcode.
type Op uint16

// Coprocessor opcodes.
const (
	OpUnknown Op = iota
	OpMCR
	OpMRC
	OpMCRR
	OpMRRC
	OpCDP
	OpLDC
	OpSTC
)

var opNames = [...]string{"unknown", "mcr", "mrc", "mcrr", "mrrc", "cdp", "ldc", "stc"}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown        Format = iota
	FormatRegTransfer           // MCR, MRC
	FormatDoubleTransfer        // MCRR, MRRC
	FormatDataOp                // CDP
	FormatLoadStore             // LDC, STC
)

// Cond represents an ARM condition code.
type Cond uint8

// Condition codes with special meaning to the decoder.
const (
	CondAL Cond = 0b1110 // Always
	CondNV Cond = 0b1111 // Unconditional instruction space
)

// Instruction represents a decoded coprocessor instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding format

	Cond          Cond // Condition code
	Unconditional bool // true for the cond=0b1111 "2" variants

	Coproc uint8 // Coprocessor number

	// Register transfer and data operation fields
	Opc1 uint8
	Opc2 uint8
	CRn  uint8
	CRm  uint8
	CRd  uint8
	Rt   uint8 // ARM register transferred
	Rt2  uint8 // Second ARM register (MCRR, MRRC)

	// Load/store fields
	Rn        uint8  // Base register
	Offset    uint32 // imm8*4
	Indexed   bool   // P bit
	Up        bool   // U bit
	Long      bool   // D bit
	Writeback bool   // W bit
}

// Decoder decodes ARM coprocessor machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new coprocessor instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit ARM instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown}

	inst.Cond = Cond(word >> 28)
	inst.Unconditional = inst.Cond == CondNV

	switch {
	case d.isRegTransferOrDataOp(word):
		d.decodeRegTransferOrDataOp(word, inst)
	case d.isDoubleTransfer(word):
		d.decodeDoubleTransfer(word, inst)
	case d.isLoadStore(word):
		d.decodeLoadStore(word, inst)
	}

	return inst
}

// isRegTransferOrDataOp checks for MCR, MRC and CDP.
// bits [27:24] == 0b1110
func (d *Decoder) isRegTransferOrDataOp(word uint32) bool {
	return (word>>24)&0xF == 0b1110
}

// decodeRegTransferOrDataOp decodes MCR, MRC and CDP.
// MCR/MRC: cond | 1110 | opc1(3) | L | CRn | Rt | coproc | opc2 | 1 | CRm
// CDP:     cond | 1110 | opc1(4) | CRn | CRd | coproc | opc2 | 0 | CRm
func (d *Decoder) decodeRegTransferOrDataOp(word uint32, inst *Instruction) {
	inst.Coproc = uint8((word >> 8) & 0xF) // bits [11:8]
	inst.CRn = uint8((word >> 16) & 0xF)   // bits [19:16]
	inst.Opc2 = uint8((word >> 5) & 0x7)   // bits [7:5]
	inst.CRm = uint8(word & 0xF)           // bits [3:0]

	if (word>>4)&0x1 == 0 {
		inst.Format = FormatDataOp
		inst.Op = OpCDP
		inst.Opc1 = uint8((word >> 20) & 0xF) // bits [23:20]
		inst.CRd = uint8((word >> 12) & 0xF)  // bits [15:12]
		return
	}

	inst.Format = FormatRegTransfer
	inst.Opc1 = uint8((word >> 21) & 0x7) // bits [23:21]
	inst.Rt = uint8((word >> 12) & 0xF)   // bits [15:12]

	if (word>>20)&0x1 == 1 {
		inst.Op = OpMRC
	} else {
		inst.Op = OpMCR
	}
}

// isDoubleTransfer checks for MCRR and MRRC.
// bits [27:21] == 0b1100010
func (d *Decoder) isDoubleTransfer(word uint32) bool {
	return (word>>21)&0x7F == 0b1100010
}

// decodeDoubleTransfer decodes MCRR and MRRC.
// Format: cond | 1100010 | L | Rt2 | Rt | coproc | opc1 | CRm
func (d *Decoder) decodeDoubleTransfer(word uint32, inst *Instruction) {
	inst.Format = FormatDoubleTransfer
	inst.Rt2 = uint8((word >> 16) & 0xF)   // bits [19:16]
	inst.Rt = uint8((word >> 12) & 0xF)    // bits [15:12]
	inst.Coproc = uint8((word >> 8) & 0xF) // bits [11:8]
	inst.Opc1 = uint8((word >> 4) & 0xF)   // bits [7:4]
	inst.CRm = uint8(word & 0xF)           // bits [3:0]

	if (word>>20)&0x1 == 1 {
		inst.Op = OpMRRC
	} else {
		inst.Op = OpMCRR
	}
}

// isLoadStore checks for LDC and STC.
// bits [27:25] == 0b110, excluding the undefined P=U=W=0 space.
func (d *Decoder) isLoadStore(word uint32) bool {
	if (word>>25)&0x7 != 0b110 {
		return false
	}
	puw := (word>>24)&0x1 | (word>>23)&0x1 | (word>>21)&0x1
	return puw != 0
}

// decodeLoadStore decodes LDC and STC.
// Format: cond | 110 | P | U | D | W | L | Rn | CRd | coproc | imm8
func (d *Decoder) decodeLoadStore(word uint32, inst *Instruction) {
	inst.Format = FormatLoadStore
	inst.Indexed = (word>>24)&0x1 == 1
	inst.Up = (word>>23)&0x1 == 1
	inst.Long = (word>>22)&0x1 == 1
	inst.Writeback = (word>>21)&0x1 == 1
	inst.Rn = uint8((word >> 16) & 0xF)    // bits [19:16]
	inst.CRd = uint8((word >> 12) & 0xF)   // bits [15:12]
	inst.Coproc = uint8((word >> 8) & 0xF) // bits [11:8]
	inst.Offset = (word & 0xFF) * 4        // bits [7:0]

	if (word>>20)&0x1 == 1 {
		inst.Op = OpLDC
	} else {
		inst.Op = OpSTC
	}
}
