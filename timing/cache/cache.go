// Package cache provides a set-associative cache model built on the Akita
// cache directory. Platform memories use it to decide the wait states of
// each bus access.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rv32sim/config"
)

// Config holds cache configuration parameters.
type Config = config.CacheConfig

// DefaultConfig returns a small cache suited to microcontroller-class
// memories: 4KB, 2-way, 16B lines, no wait state on a hit.
func DefaultConfig() Config {
	return Config{
		Size:          4 * 1024, // 4KB
		Associativity: 2,        // 2-way
		BlockSize:     16,       // 16B cache line
		HitLatency:    0,        // single-cycle acknowledge
		MissLatency:   8,        // line refill
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of wait states this access takes.
	Latency uint64
	// Data is the word read (for load operations).
	Data uint32
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint32
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the fraction of accesses that hit.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint32, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint32, data []byte)
}

// Cache is a write-back, write-allocate cache of 32-bit words.
type Cache struct {
	// Configuration
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	// Statistics
	stats Statistics

	// Backing store interface (for fetching on miss and writeback)
	backing BackingStore
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
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

// blockIndex computes the index into dataStore for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	return addr &^ uint32(c.config.BlockSize-1)
}

func (c *Cache) lookup(addr uint32) *akitacache.Block {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Read performs a word read. addr is word aligned.
func (c *Cache) Read(addr uint32) AccessResult {
	c.stats.Reads++
	addr &^= 0b11

	if block := c.lookup(addr); block != nil {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr - c.blockAddr(addr)
		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
			Data:    extractWord(c.dataStore[c.blockIndex(block)], offset),
		}
	}

	c.stats.Misses++
	result, block := c.handleMiss(addr)
	result.Data = extractWord(c.dataStore[c.blockIndex(block)], addr-c.blockAddr(addr))
	return result
}

// Write performs a word write of the bytes selected by sel.
func (c *Cache) Write(addr uint32, data uint32, sel uint8) AccessResult {
	c.stats.Writes++
	addr &^= 0b11

	result := AccessResult{Hit: true, Latency: c.config.HitLatency}
	block := c.lookup(addr)
	if block != nil {
		c.stats.Hits++
		c.directory.Visit(block)
	} else {
		c.stats.Misses++
		result, block = c.handleMiss(addr)
	}

	storeWord(c.dataStore[c.blockIndex(block)], addr-c.blockAddr(addr), data, sel)
	block.IsDirty = true
	return result
}

// Peek returns the cached word at addr without touching statistics or
// replacement state. ok is false when the line is not cached.
func (c *Cache) Peek(addr uint32) (data uint32, ok bool) {
	block := c.lookup(addr &^ 0b11)
	if block == nil {
		return 0, false
	}
	return extractWord(c.dataStore[c.blockIndex(block)], addr&^0b11-c.blockAddr(addr)), true
}

// handleMiss refills the line of addr, evicting a victim if needed.
func (c *Cache) handleMiss(addr uint32) (AccessResult, *akitacache.Block) {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	blockAddr := c.blockAddr(addr)
	victim := c.directory.FindVictim(uint64(blockAddr))
	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = uint32(victim.Tag)

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(uint32(victim.Tag), victimData)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	// The tag holds the block-aligned address.
	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return result, victim
}

// Invalidate marks a cache line as invalid without writeback.
func (c *Cache) Invalidate(addr uint32) {
	if block := c.lookup(addr); block != nil {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				c.backing.Write(uint32(block.Tag), c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func extractWord(data []byte, offset uint32) uint32 {
	return uint32(data[offset]) | uint32(data[offset+1])<<8 |
		uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
}

func storeWord(data []byte, offset uint32, value uint32, sel uint8) {
	for i := uint32(0); i < 4; i++ {
		if sel&(1<<i) != 0 {
			data[offset+i] = byte(value >> (8 * i))
		}
	}
}
