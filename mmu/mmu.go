// Package mmu provides a memory manager that receives CP15 notifications.
// It tracks the guest's translation state and drives TLB and cache models
// with the maintenance operations the guest issues.
package mmu

import (
	"log/slog"

	"github.com/sarchlab/hyparm/cp15"
	"github.com/sarchlab/hyparm/mmu/cache"
)

// DefaultTLBEntries is the size of each TLB when none is configured.
const DefaultTLBEntries = 32

// Barriers counts barrier operations.
type Barriers struct {
	ISB uint64
	DSB uint64
	DMB uint64
}

// State is the translation state last written by the guest.
type State struct {
	Enabled    bool
	TTB        uint32
	DACR       uint32
	ContextID  uint32
	AlignCheck bool
}

// ASID returns the address space identifier held in CONTEXTIDR[7:0].
func (s State) ASID() uint8 {
	return uint8(s.ContextID)
}

// Manager implements cp15.MemoryManager.
type Manager struct {
	state State

	ram *cache.RAM
	l1i *cache.Cache
	l1d *cache.Cache
	l2  *cache.Cache

	itlb *TLB
	dtlb *TLB

	barriers          Barriers
	predictorFlushes  uint64
	maintenanceCounts map[cp15.MaintenanceOp]uint64

	logger *slog.Logger

	l1iConfig  cache.Config
	l1dConfig  cache.Config
	l2Config   cache.Config
	tlbEntries int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithCaches sets the cache geometry for each level.
func WithCaches(l1i, l1d, l2 cache.Config) Option {
	return func(m *Manager) {
		m.l1iConfig = l1i
		m.l1dConfig = l1d
		m.l2Config = l2
	}
}

// WithTLBEntries sets the number of entries of each TLB.
func WithTLBEntries(n int) Option {
	return func(m *Manager) {
		m.tlbEntries = n
	}
}

// WithRAM sets the memory behind the cache hierarchy.
func WithRAM(ram *cache.RAM) Option {
	return func(m *Manager) {
		m.ram = ram
	}
}

// New creates a Manager. Geometry defaults to the caches reported by the
// CCSIDR reset values.
func New(opts ...Option) *Manager {
	m := &Manager{
		logger:            slog.New(slog.DiscardHandler),
		l1iConfig:         cache.DefaultL1IConfig(),
		l1dConfig:         cache.DefaultL1DConfig(),
		l2Config:          cache.DefaultL2Config(),
		tlbEntries:        DefaultTLBEntries,
		maintenanceCounts: make(map[cp15.MaintenanceOp]uint64),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.ram == nil {
		m.ram = cache.NewRAM()
	}

	m.l2 = cache.New(m.l2Config, m.ram)
	m.l1i = cache.New(m.l1iConfig, cache.NextLevel(m.l2))
	m.l1d = cache.New(m.l1dConfig, cache.NextLevel(m.l2))
	m.itlb = NewTLB(m.tlbEntries)
	m.dtlb = NewTLB(m.tlbEntries)

	return m
}

// State returns the current translation state.
func (m *Manager) State() State { return m.state }

// RAM returns the memory behind the caches.
func (m *Manager) RAM() *cache.RAM { return m.ram }

// L1I returns the instruction cache.
func (m *Manager) L1I() *cache.Cache { return m.l1i }

// L1D returns the data cache.
func (m *Manager) L1D() *cache.Cache { return m.l1d }

// L2 returns the unified cache.
func (m *Manager) L2() *cache.Cache { return m.l2 }

// ITLB returns the instruction TLB.
func (m *Manager) ITLB() *TLB { return m.itlb }

// DTLB returns the data TLB.
func (m *Manager) DTLB() *TLB { return m.dtlb }

// Barriers returns barrier counters.
func (m *Manager) Barriers() Barriers { return m.barriers }

// BranchPredictorFlushes returns how often BPIALL was issued.
func (m *Manager) BranchPredictorFlushes() uint64 { return m.predictorFlushes }

// MaintenanceCount returns how often op was issued.
func (m *Manager) MaintenanceCount(op cp15.MaintenanceOp) uint64 {
	return m.maintenanceCounts[op]
}

// EnableMMU turns translation on for the guest.
func (m *Manager) EnableMMU(g cp15.Guest) {
	m.state.Enabled = true
	g.SetVirtAddrEnabled(true)
	m.logger.Debug("guest MMU enabled", "ttb", m.state.TTB)
}

// DisableMMU turns translation off for the guest.
func (m *Manager) DisableMMU(g cp15.Guest) {
	m.state.Enabled = false
	g.SetVirtAddrEnabled(false)
	m.logger.Debug("guest MMU disabled")
}

// SetPageTableBase records a new translation table base.
func (m *Manager) SetPageTableBase(base uint32) {
	m.state.TTB = base
	m.logger.Debug("page table base", "ttb", base)
}

// ChangeDACR records new domain access permissions.
func (m *Manager) ChangeDACR(old, new uint32) {
	m.state.DACR = new
	m.logger.Debug("DACR changed", "old", old, "new", new)
}

// SetContextID records the context ID and its ASID.
func (m *Manager) SetContextID(id uint32) {
	m.state.ContextID = id
	m.logger.Debug("context ID", "id", id, "asid", uint8(id))
}

// SetAlignCheck records whether unaligned accesses fault.
func (m *Manager) SetAlignCheck(enabled bool) {
	m.state.AlignCheck = enabled
}

// Maintain performs a cache, barrier or TLB maintenance operation.
// Address operands are treated as physical since no translation is modeled.
func (m *Manager) Maintain(op cp15.MaintenanceOp, operand uint32) {
	m.maintenanceCounts[op]++
	addr := uint64(operand)

	switch op {
	case cp15.OpInvalidateICache:
		m.l1i.InvalidateAll()
	case cp15.OpInvalidateICacheByMVA:
		m.l1i.InvalidateLine(addr)
	case cp15.OpInstructionSyncBarrier:
		m.barriers.ISB++
	case cp15.OpInvalidateBranchPredictor:
		m.predictorFlushes++
	case cp15.OpInvalidateDCacheByMVA:
		m.l1d.InvalidateLine(addr)
		m.l2.InvalidateLine(addr)
	case cp15.OpCleanDCacheByMVA:
		m.l1d.CleanLine(addr)
		m.l2.CleanLine(addr)
	case cp15.OpCleanDCacheByMVAToPoU:
		m.l1d.CleanLine(addr)
	case cp15.OpCleanInvalidateDCacheByMVA:
		m.l1d.CleanInvalidateLine(addr)
		m.l2.CleanInvalidateLine(addr)
	case cp15.OpCleanDCacheBySetWay:
		if c := m.dataCacheAt(operand); c != nil {
			sw := c.DecodeSetWay(operand)
			c.CleanSetWay(sw.Set, sw.Way)
		}
	case cp15.OpCleanInvalidateDCacheBySetWay:
		if c := m.dataCacheAt(operand); c != nil {
			sw := c.DecodeSetWay(operand)
			c.CleanInvalidateSetWay(sw.Set, sw.Way)
		}
	case cp15.OpDataSyncBarrier:
		m.barriers.DSB++
	case cp15.OpDataMemoryBarrier:
		m.barriers.DMB++
	case cp15.OpInvalidateITLB:
		m.itlb.InvalidateAll()
	case cp15.OpInvalidateITLBByMVA:
		m.itlb.InvalidateMVA(operand)
	case cp15.OpInvalidateITLBByASID:
		m.itlb.InvalidateASID(operand)
	case cp15.OpInvalidateDTLB:
		m.dtlb.InvalidateAll()
	case cp15.OpInvalidateDTLBByMVA:
		m.dtlb.InvalidateMVA(operand)
	case cp15.OpInvalidateDTLBByASID:
		m.dtlb.InvalidateASID(operand)
	case cp15.OpInvalidateUTLB:
		m.itlb.InvalidateAll()
		m.dtlb.InvalidateAll()
	case cp15.OpInvalidateUTLBByMVA:
		m.itlb.InvalidateMVA(operand)
		m.dtlb.InvalidateMVA(operand)
	case cp15.OpInvalidateUTLBByASID:
		m.itlb.InvalidateASID(operand)
		m.dtlb.InvalidateASID(operand)
	default:
		m.logger.Warn("unknown maintenance operation", "op", op)
		return
	}

	m.logger.Debug("maintenance", "op", op.String(), "operand", operand)
}

// dataCacheAt selects the data or unified cache named by a set/way
// operand's level field. Levels beyond L2 are ignored.
func (m *Manager) dataCacheAt(operand uint32) *cache.Cache {
	switch (operand >> 1) & 0x7 {
	case 0:
		return m.l1d
	case 1:
		return m.l2
	default:
		return nil
	}
}

// Read loads size bytes at addr through the data side. ok is false when
// alignment checking is on and addr is not size-aligned.
func (m *Manager) Read(addr uint32, size int) (value uint32, ok bool) {
	if !m.access(m.dtlb, addr, size) {
		return 0, false
	}
	return uint32(m.l1d.Read(uint64(addr), size).Data), true
}

// Write stores size bytes at addr through the data side. ok is false when
// alignment checking is on and addr is not size-aligned.
func (m *Manager) Write(addr uint32, size int, value uint32) (ok bool) {
	if !m.access(m.dtlb, addr, size) {
		return false
	}
	m.l1d.Write(uint64(addr), size, uint64(value))
	return true
}

// Fetch loads an instruction word at addr through the instruction side.
func (m *Manager) Fetch(addr uint32) uint32 {
	m.access(m.itlb, addr&^3, 4)
	return uint32(m.l1i.Read(uint64(addr&^3), 4).Data)
}

func (m *Manager) access(tlb *TLB, addr uint32, size int) bool {
	if m.state.AlignCheck && addr%uint32(size) != 0 {
		return false
	}
	if m.state.Enabled && !tlb.Lookup(addr, m.state.ASID()) {
		tlb.Fill(addr, m.state.ASID())
	}
	return true
}
