package guest

// Mode is the processor mode held in CPSR[4:0].
type Mode uint32

// Processor modes.
const (
	ModeUSR Mode = 0x10
	ModeFIQ Mode = 0x11
	ModeIRQ Mode = 0x12
	ModeSVC Mode = 0x13
	ModeABT Mode = 0x17
	ModeUND Mode = 0x1B
	ModeSYS Mode = 0x1F
)

// PSR bits.
const (
	PSRModeMask uint32 = 0x1F
	PSRThumb    uint32 = 1 << 5
	PSRFIQMask  uint32 = 1 << 6
	PSRIRQMask  uint32 = 1 << 7
	PSRAbtMask  uint32 = 1 << 8
	PSRBigEnd   uint32 = 1 << 9
	PSRJazelle  uint32 = 1 << 24
	PSRQ        uint32 = 1 << 27
	PSRV        uint32 = 1 << 28
	PSRC        uint32 = 1 << 29
	PSRZ        uint32 = 1 << 30
	PSRN        uint32 = 1 << 31
)

// Valid reports whether m is an architectural mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeUSR, ModeFIQ, ModeIRQ, ModeSVC, ModeABT, ModeUND, ModeSYS:
		return true
	}
	return false
}

// HasSPSR reports whether the mode banks a saved PSR.
func (m Mode) HasSPSR() bool {
	return m.Valid() && m != ModeUSR && m != ModeSYS
}

func (m Mode) String() string {
	switch m {
	case ModeUSR:
		return "usr"
	case ModeFIQ:
		return "fiq"
	case ModeIRQ:
		return "irq"
	case ModeSVC:
		return "svc"
	case ModeABT:
		return "abt"
	case ModeUND:
		return "und"
	case ModeSYS:
		return "sys"
	default:
		return "invalid"
	}
}

// ModeOf extracts the mode from a PSR value.
func ModeOf(psr uint32) Mode {
	return Mode(psr & PSRModeMask)
}
