package cp15

import (
	"github.com/sarchlab/hyparm/fault"
)

type bitState uint8

const (
	anyState bitState = iota
	bitClear
	bitSet
)

func (s bitState) matches(v, mask uint32) bool {
	switch s {
	case bitClear:
		return v&mask == 0
	case bitSet:
		return v&mask == mask
	default:
		return true
	}
}

// watcher fires its effect when a write moves the masked bits from a value
// matching before to a value matching after.
type watcher struct {
	name   string
	mask   uint32
	before bitState
	after  bitState
	effect func(b *Bank, g Guest) error
}

func unsupported(feature string) func(*Bank, Guest) error {
	return func(*Bank, Guest) error {
		return fault.Unmodeled("cp15", "SCTLR enables %s", feature)
	}
}

// sctlrWatchers run in order on every SCTLR write; the first error stops
// the walk.
var sctlrWatchers = []watcher{
	{"access flag", SCTLRAccessFlag, anyState, bitSet, unsupported("access flag")},
	{"hardware access flag", SCTLRHWAccess, anyState, bitSet, unsupported("hardware access flag")},
	{"vectored interrupts", SCTLRVE, anyState, bitSet, unsupported("vectored interrupts")},
	{"mmu on", SCTLRMMUEnable, bitClear, bitSet, func(b *Bank, g Guest) error {
		b.mm.EnableMMU(g)
		return nil
	}},
	{"mmu off", SCTLRMMUEnable, bitSet, bitClear, func(b *Bank, g Guest) error {
		b.mm.DisableMMU(g)
		return nil
	}},
	{"high vectors on", SCTLRHighVectors, bitClear, bitSet, func(_ *Bank, g Guest) error {
		g.SetHighVectors(true)
		return nil
	}},
	{"high vectors off", SCTLRHighVectors, bitSet, bitClear, func(_ *Bank, g Guest) error {
		g.SetHighVectors(false)
		return nil
	}},
	{"align check on", SCTLRAlignCheck, bitClear, bitSet, func(b *Bank, _ Guest) error {
		b.mm.SetAlignCheck(true)
		return nil
	}},
	{"align check off", SCTLRAlignCheck, bitSet, bitClear, func(b *Bank, _ Guest) error {
		b.mm.SetAlignCheck(false)
		return nil
	}},
	{"tex remap on", SCTLRTEXRemap, bitClear, bitSet, texRemap(true)},
	{"tex remap off", SCTLRTEXRemap, bitSet, bitClear, texRemap(false)},
}

// texRemap only reports the change; PRRR and NMRR are stored, never applied.
func texRemap(enabled bool) func(*Bank, Guest) error {
	return func(b *Bank, _ Guest) error {
		b.logger.Warn("cp15 sctlr tex remap changed", "enabled", enabled)
		return nil
	}
}

func (b *Bank) applySCTLR(g Guest, old, value uint32) error {
	for _, w := range sctlrWatchers {
		if !w.before.matches(old, w.mask) || !w.after.matches(value, w.mask) {
			continue
		}

		b.stats.SCTLREffects++
		b.logger.Debug("cp15 sctlr", "watcher", w.name, "value", hex(value))
		if err := w.effect(b, g); err != nil {
			return err
		}
	}
	return nil
}
