package cp15

// Guest is the part of the guest context that register side effects update.
type Guest interface {
	SetHighVectors(enabled bool)
	SetVirtAddrEnabled(enabled bool)
}

// MaintenanceOp names a cache, barrier or TLB maintenance operation.
type MaintenanceOp uint8

// Maintenance operations, one per maintenance register.
const (
	OpInvalidateICache MaintenanceOp = iota
	OpInvalidateICacheByMVA
	OpInstructionSyncBarrier
	OpInvalidateBranchPredictor
	OpInvalidateDCacheByMVA
	OpCleanDCacheByMVA
	OpCleanDCacheBySetWay
	OpDataSyncBarrier
	OpDataMemoryBarrier
	OpCleanDCacheByMVAToPoU
	OpCleanInvalidateDCacheByMVA
	OpCleanInvalidateDCacheBySetWay
	OpInvalidateITLB
	OpInvalidateITLBByMVA
	OpInvalidateITLBByASID
	OpInvalidateDTLB
	OpInvalidateDTLBByMVA
	OpInvalidateDTLBByASID
	OpInvalidateUTLB
	OpInvalidateUTLBByMVA
	OpInvalidateUTLBByASID
)

var maintenanceNames = [...]string{
	"InvalidateICache", "InvalidateICacheByMVA", "InstructionSyncBarrier",
	"InvalidateBranchPredictor", "InvalidateDCacheByMVA", "CleanDCacheByMVA",
	"CleanDCacheBySetWay", "DataSyncBarrier", "DataMemoryBarrier",
	"CleanDCacheByMVAToPoU", "CleanInvalidateDCacheByMVA",
	"CleanInvalidateDCacheBySetWay", "InvalidateITLB", "InvalidateITLBByMVA",
	"InvalidateITLBByASID", "InvalidateDTLB", "InvalidateDTLBByMVA",
	"InvalidateDTLBByASID", "InvalidateUTLB", "InvalidateUTLBByMVA",
	"InvalidateUTLBByASID",
}

func (op MaintenanceOp) String() string {
	if int(op) < len(maintenanceNames) {
		return maintenanceNames[op]
	}
	return "Unknown"
}

// MemoryManager receives the notifications that CP15 writes produce.
// Implementations must not write back into the register bank.
type MemoryManager interface {
	EnableMMU(g Guest)
	DisableMMU(g Guest)
	SetPageTableBase(base uint32)
	ChangeDACR(old, new uint32)
	SetContextID(id uint32)
	SetAlignCheck(enabled bool)
	// Maintain performs a maintenance operation with the written operand.
	Maintain(op MaintenanceOp, operand uint32)
}

// Coprocessor is the physical CP15 that some guest writes are mirrored to.
type Coprocessor interface {
	WriteCP15(reg Register, value uint32)
}

// HostMirror records mirrored writes in memory.
type HostMirror struct {
	values map[Register]uint32
}

// NewHostMirror creates an empty mirror.
func NewHostMirror() *HostMirror {
	return &HostMirror{values: make(map[Register]uint32)}
}

// WriteCP15 records the value as the physical register's contents.
func (m *HostMirror) WriteCP15(reg Register, value uint32) {
	m.values[reg] = value
}

// Value returns the last mirrored value of reg.
func (m *HostMirror) Value(reg Register) (uint32, bool) {
	v, ok := m.values[reg]
	return v, ok
}

type nopMemoryManager struct{}

func (nopMemoryManager) EnableMMU(g Guest)              { g.SetVirtAddrEnabled(true) }
func (nopMemoryManager) DisableMMU(g Guest)             { g.SetVirtAddrEnabled(false) }
func (nopMemoryManager) SetPageTableBase(uint32)        {}
func (nopMemoryManager) ChangeDACR(uint32, uint32)      {}
func (nopMemoryManager) SetContextID(uint32)            {}
func (nopMemoryManager) SetAlignCheck(bool)             {}
func (nopMemoryManager) Maintain(MaintenanceOp, uint32) {}
