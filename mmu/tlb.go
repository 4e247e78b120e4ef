package mmu

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// PageSize is the translation granule tracked by the TLB model.
const PageSize = 4096

// TLBStats holds TLB statistics.
type TLBStats struct {
	Lookups       uint64
	Hits          uint64
	Fills         uint64
	Invalidations uint64
}

// TLB is a fully associative, ASID-tagged translation cache. Tags and
// replacement come from an Akita directory with a single set; the ASID of
// each way is kept alongside.
type TLB struct {
	directory *akitacache.DirectoryImpl
	asids     []uint8
	stats     TLBStats
}

// NewTLB creates a TLB with the given number of entries.
func NewTLB(entries int) *TLB {
	return &TLB{
		directory: akitacache.NewDirectory(
			1, entries, PageSize, akitacache.NewLRUVictimFinder()),
		asids: make([]uint8, entries),
	}
}

func pageOf(va uint32) uint64 {
	return uint64(va) &^ (PageSize - 1)
}

func (t *TLB) blocks() []*akitacache.Block {
	return t.directory.GetSets()[0].Blocks
}

func (t *TLB) find(va uint32, asid uint8) *akitacache.Block {
	page := pageOf(va)
	for _, block := range t.blocks() {
		if block.IsValid && block.Tag == page && t.asids[block.WayID] == asid {
			return block
		}
	}
	return nil
}

// Lookup reports whether va is cached for asid.
func (t *TLB) Lookup(va uint32, asid uint8) bool {
	t.stats.Lookups++
	block := t.find(va, asid)
	if block == nil {
		return false
	}
	t.stats.Hits++
	t.directory.Visit(block)
	return true
}

// Fill caches the page holding va for asid, replacing the LRU entry.
func (t *TLB) Fill(va uint32, asid uint8) {
	if block := t.find(va, asid); block != nil {
		t.directory.Visit(block)
		return
	}

	victim := t.directory.FindVictim(pageOf(va))
	victim.Tag = pageOf(va)
	victim.IsValid = true
	t.asids[victim.WayID] = asid
	t.directory.Visit(victim)
	t.stats.Fills++
}

// Len returns the number of valid entries.
func (t *TLB) Len() int {
	n := 0
	for _, block := range t.blocks() {
		if block.IsValid {
			n++
		}
	}
	return n
}

// InvalidateAll drops every entry.
func (t *TLB) InvalidateAll() {
	t.stats.Invalidations++
	t.directory.Reset()
}

// InvalidateMVA drops the entry for the page in operand[31:12] and the
// ASID in operand[7:0].
func (t *TLB) InvalidateMVA(operand uint32) {
	t.stats.Invalidations++
	if block := t.find(operand, uint8(operand)); block != nil {
		block.IsValid = false
	}
}

// InvalidateASID drops every entry tagged with the ASID in operand[7:0].
func (t *TLB) InvalidateASID(operand uint32) {
	t.stats.Invalidations++
	asid := uint8(operand)
	for _, block := range t.blocks() {
		if block.IsValid && t.asids[block.WayID] == asid {
			block.IsValid = false
		}
	}
}

// Stats returns TLB statistics.
func (t *TLB) Stats() TLBStats {
	return t.stats
}
