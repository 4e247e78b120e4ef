// Package guest holds the architectural state of one virtual CPU.
package guest

import (
	"github.com/sarchlab/hyparm/fault"
)

// Register numbers with architectural roles.
const (
	SP uint8 = 13
	LR uint8 = 14
	PC uint8 = 15
)

// RegFile represents the ARMv7 register file with banked registers.
// R holds the user-mode view of R0-R15.
type RegFile struct {
	R [16]uint32

	// FIQ banks R8-R14.
	FIQ [7]uint32

	// SVC, ABT, IRQ and UND bank R13 and R14.
	SVC [2]uint32
	ABT [2]uint32
	IRQ [2]uint32
	UND [2]uint32

	CPSR uint32

	SPSRFIQ uint32
	SPSRSVC uint32
	SPSRABT uint32
	SPSRIRQ uint32
	SPSRUND uint32
}

// Mode returns the current processor mode.
func (r *RegFile) Mode() Mode {
	return ModeOf(r.CPSR)
}

// ChangeMode replaces the CPSR mode field.
func (r *RegFile) ChangeMode(m Mode) {
	r.CPSR = (r.CPSR &^ PSRModeMask) | uint32(m)
}

// slot returns the storage for register n as seen from mode m.
func (r *RegFile) slot(m Mode, n uint8) *uint32 {
	if n == PC {
		return &r.R[PC]
	}

	switch m {
	case ModeFIQ:
		if n >= 8 {
			return &r.FIQ[n-8]
		}
	case ModeSVC:
		if n >= SP {
			return &r.SVC[n-SP]
		}
	case ModeABT:
		if n >= SP {
			return &r.ABT[n-SP]
		}
	case ModeIRQ:
		if n >= SP {
			return &r.IRQ[n-SP]
		}
	case ModeUND:
		if n >= SP {
			return &r.UND[n-SP]
		}
	}
	return &r.R[n]
}

// ReadReg reads register n in the current mode. Registers >= 16 return 0.
func (r *RegFile) ReadReg(n uint8) uint32 {
	if n > PC {
		return 0
	}
	return *r.slot(r.Mode(), n)
}

// WriteReg writes register n in the current mode. Writes to registers >= 16
// are ignored.
func (r *RegFile) WriteReg(n uint8, value uint32) {
	if n > PC {
		return
	}
	*r.slot(r.Mode(), n) = value
}

// Banked reads register n as seen from mode m.
func (r *RegFile) Banked(m Mode, n uint8) uint32 {
	if n > PC {
		return 0
	}
	return *r.slot(m, n)
}

// SetBanked writes register n as seen from mode m.
func (r *RegFile) SetBanked(m Mode, n uint8, value uint32) {
	if n > PC {
		return
	}
	*r.slot(m, n) = value
}

// PC returns the program counter.
func (r *RegFile) PC() uint32 {
	return r.R[PC]
}

// SetPC sets the program counter.
func (r *RegFile) SetPC(pc uint32) {
	r.R[PC] = pc
}

func (r *RegFile) spsr(m Mode) (*uint32, error) {
	switch m {
	case ModeFIQ:
		return &r.SPSRFIQ, nil
	case ModeSVC:
		return &r.SPSRSVC, nil
	case ModeABT:
		return &r.SPSRABT, nil
	case ModeIRQ:
		return &r.SPSRIRQ, nil
	case ModeUND:
		return &r.SPSRUND, nil
	default:
		return nil, fault.Config("guest", "mode %s has no SPSR", m)
	}
}

// SPSR returns the saved PSR of mode m.
func (r *RegFile) SPSR(m Mode) (uint32, error) {
	p, err := r.spsr(m)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// SetSPSR sets the saved PSR of mode m.
func (r *RegFile) SetSPSR(m Mode, value uint32) error {
	p, err := r.spsr(m)
	if err != nil {
		return err
	}
	*p = value
	return nil
}
