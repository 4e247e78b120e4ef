// Package cache models the guest-visible cache hierarchy using Akita cache
// components. Maintenance operations written to CP15 are applied here.
package cache

import (
	"math/bits"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/hyparm/cp15"
)

// Config holds cache geometry.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
}

// NumSets returns the number of sets.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// ConfigFromCCSIDR decodes the geometry reported by a CCSIDR value.
func ConfigFromCCSIDR(ccsidr uint32) Config {
	lineSize := 16 << (ccsidr & 0x7)
	ways := int((ccsidr>>3)&0x3FF) + 1
	sets := int((ccsidr>>13)&0x7FFF) + 1
	return Config{
		Size:          sets * ways * lineSize,
		Associativity: ways,
		BlockSize:     lineSize,
	}
}

// DefaultL1DConfig returns the L1 data cache reported by CCSIDR.
func DefaultL1DConfig() Config {
	return ConfigFromCCSIDR(cp15.CCSIDRL1Data)
}

// DefaultL1IConfig returns the L1 instruction cache reported by CCSIDR.
func DefaultL1IConfig() Config {
	return ConfigFromCCSIDR(cp15.CCSIDRL1Instruction)
}

// DefaultL2Config returns the unified L2 cache reported by CCSIDR.
func DefaultL2Config() Config {
	return ConfigFromCCSIDR(cp15.CCSIDRL2Unified)
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Data is the data read (for load operations).
	Data uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// Statistics holds cache statistics.
type Statistics struct {
	Reads         uint64
	Writes        uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Writebacks    uint64
	Cleans        uint64
	Invalidations uint64
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint64, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint64, data []byte)
}

// Cache is one cache level.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats   Statistics
	backing BackingStore
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.NumSets()
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

func (c *Cache) lookup(addr uint64) *akitacache.Block {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Contains reports whether the line holding addr is valid.
func (c *Cache) Contains(addr uint64) bool {
	return c.lookup(addr) != nil
}

// IsDirty reports whether the line holding addr is valid and dirty.
func (c *Cache) IsDirty(addr uint64) bool {
	block := c.lookup(addr)
	return block != nil && block.IsDirty
}

// Read performs a cache read of size bytes at addr.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	if c.crossesLine(addr, size) {
		buf := c.transfer(addr, make([]byte, size), false)
		return AccessResult{Data: extractData(buf, 0, size)}
	}

	c.stats.Reads++

	block := c.lookup(addr)
	if block == nil {
		c.stats.Misses++
		return c.handleMiss(addr, size, false, 0)
	}

	c.stats.Hits++
	c.directory.Visit(block)

	offset := addr % uint64(c.config.BlockSize)
	return AccessResult{
		Hit:  true,
		Data: extractData(c.dataStore[c.blockIndex(block)], offset, size),
	}
}

// Write performs a write-allocate, write-back cache write.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	if c.crossesLine(addr, size) {
		buf := make([]byte, size)
		storeData(buf, 0, size, data)
		c.transfer(addr, buf, true)
		return AccessResult{}
	}

	c.stats.Writes++

	block := c.lookup(addr)
	if block == nil {
		c.stats.Misses++
		return c.handleMiss(addr, size, true, data)
	}

	c.stats.Hits++
	c.directory.Visit(block)

	offset := addr % uint64(c.config.BlockSize)
	storeData(c.dataStore[c.blockIndex(block)], offset, size, data)
	block.IsDirty = true

	return AccessResult{Hit: true}
}

// crossesLine reports whether an access spills into the next line. Such
// accesses are split and counted once per line touched.
func (c *Cache) crossesLine(addr uint64, size int) bool {
	return addr%uint64(c.config.BlockSize)+uint64(size) > uint64(c.config.BlockSize)
}

// handleMiss fills a line from the backing store.
func (c *Cache) handleMiss(addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	var result AccessResult

	victim := c.fill(c.blockAddr(addr), &result)
	if victim == nil {
		return result
	}

	offset := addr % uint64(c.config.BlockSize)
	data := c.dataStore[c.blockIndex(victim)]
	if isWrite {
		storeData(data, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(data, offset, size)
	}

	return result
}

// fill allocates a line for blockAddr, writing back the victim if needed.
func (c *Cache) fill(blockAddr uint64, result *AccessResult) *akitacache.Block {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return nil
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		c.writeback(victim)
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		clear(victimData)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return victim
}

func (c *Cache) writeback(block *akitacache.Block) {
	if !block.IsValid || !block.IsDirty {
		return
	}
	if c.backing != nil {
		c.backing.Write(block.Tag, c.dataStore[c.blockIndex(block)])
	}
	c.stats.Writebacks++
	block.IsDirty = false
}

// transfer moves buf to or from the cache one line at a time. Each line
// touched counts as a single access.
func (c *Cache) transfer(addr uint64, buf []byte, isWrite bool) []byte {
	lineSize := uint64(c.config.BlockSize)
	for done := 0; done < len(buf); {
		a := addr + uint64(done)
		offset := a % lineSize
		n := min(len(buf)-done, int(lineSize-offset))

		if isWrite {
			c.stats.Writes++
		} else {
			c.stats.Reads++
		}

		block := c.lookup(a)
		if block == nil {
			c.stats.Misses++
			var result AccessResult
			block = c.fill(c.blockAddr(a), &result)
		} else {
			c.stats.Hits++
			c.directory.Visit(block)
		}

		if block != nil {
			line := c.dataStore[c.blockIndex(block)]
			if isWrite {
				copy(line[offset:], buf[done:done+n])
				block.IsDirty = true
			} else {
				copy(buf[done:done+n], line[offset:])
			}
		}
		done += n
	}
	return buf
}

// InvalidateAll drops every line without writeback.
func (c *Cache) InvalidateAll() {
	c.directory.Reset()
	c.stats.Invalidations++
}

// InvalidateLine drops the line holding addr without writeback.
func (c *Cache) InvalidateLine(addr uint64) {
	c.stats.Invalidations++
	if block := c.lookup(addr); block != nil {
		block.IsValid = false
		block.IsDirty = false
	}
}

// CleanLine writes back the line holding addr if it is dirty.
func (c *Cache) CleanLine(addr uint64) {
	c.stats.Cleans++
	if block := c.lookup(addr); block != nil {
		c.writeback(block)
	}
}

// CleanInvalidateLine writes back and drops the line holding addr.
func (c *Cache) CleanInvalidateLine(addr uint64) {
	c.CleanLine(addr)
	c.InvalidateLine(addr)
}

func (c *Cache) blockAt(set, way int) *akitacache.Block {
	sets := c.directory.GetSets()
	if set < 0 || set >= len(sets) || way < 0 || way >= len(sets[set].Blocks) {
		return nil
	}
	return sets[set].Blocks[way]
}

// CleanSetWay writes back the line at (set, way) if it is dirty.
func (c *Cache) CleanSetWay(set, way int) {
	c.stats.Cleans++
	if block := c.blockAt(set, way); block != nil {
		c.writeback(block)
	}
}

// CleanInvalidateSetWay writes back and drops the line at (set, way).
func (c *Cache) CleanInvalidateSetWay(set, way int) {
	c.CleanSetWay(set, way)
	c.stats.Invalidations++
	if block := c.blockAt(set, way); block != nil {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			c.writeback(block)
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback and clears stats.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

// SetWay is a decoded set/way maintenance operand.
type SetWay struct {
	Level int
	Set   int
	Way   int
}

// DecodeSetWay splits a DCCSW/DCCISW operand using this cache's geometry.
// The way occupies the top ceil(log2(ways)) bits and the set starts at
// log2(line size); bits [3:1] hold the zero-based level.
func (c *Cache) DecodeSetWay(operand uint32) SetWay {
	ways := c.config.Associativity
	setShift := bits.TrailingZeros(uint(c.config.BlockSize))
	wayBits := bits.Len(uint(ways - 1))
	setMask := uint32(c.config.NumSets() - 1)

	sw := SetWay{
		Level: int((operand >> 1) & 0x7),
		Set:   int((operand >> setShift) & setMask),
	}
	if wayBits > 0 {
		sw.Way = int(operand >> (32 - wayBits))
	}
	return sw
}

// EncodeSetWay builds a set/way operand for this cache at the given level.
func (c *Cache) EncodeSetWay(sw SetWay) uint32 {
	setShift := bits.TrailingZeros(uint(c.config.BlockSize))
	wayBits := bits.Len(uint(c.config.Associativity - 1))

	v := uint32(sw.Level&0x7)<<1 | uint32(sw.Set)<<setShift
	if wayBits > 0 {
		v |= uint32(sw.Way) << (32 - wayBits)
	}
	return v
}

// extractData extracts a little-endian value of the given size.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a little-endian value of the given size.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
