package guest

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set (C == 1)
	CondCC Cond = 0b0011 // Carry Clear (C == 0)
	CondMI Cond = 0b0100 // Negative (N == 1)
	CondPL Cond = 0b0101 // Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always
	CondNV Cond = 0b1111 // Unconditional instruction space
)

// ConditionPassed evaluates a condition code against the CPSR flags.
// CondNV reports true: the unconditional encodings execute regardless of
// flags.
func (r *RegFile) ConditionPassed(cond Cond) bool {
	n := r.CPSR&PSRN != 0
	z := r.CPSR&PSRZ != 0
	c := r.CPSR&PSRC != 0
	v := r.CPSR&PSRV != 0

	switch cond {
	case CondEQ:
		return z
	case CondNE:
		return !z
	case CondCS:
		return c
	case CondCC:
		return !c
	case CondMI:
		return n
	case CondPL:
		return !n
	case CondVS:
		return v
	case CondVC:
		return !v
	case CondHI:
		return c && !z
	case CondLS:
		return !c || z
	case CondGE:
		return n == v
	case CondLT:
		return n != v
	case CondGT:
		return !z && n == v
	case CondLE:
		return z || n != v
	case CondAL, CondNV:
		return true
	default:
		return false
	}
}
