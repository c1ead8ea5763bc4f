// Package blockcache implements the fixed-capacity, write-back LRU cache
// that sits between the ext2 engine and a blockdev.BlockDevice (spec.md
// §4.2). Recency is tracked with an intrusive doubly-linked list threaded
// through a fixed pool of entries, addressed by index rather than pointer —
// the safe-language rendition of the spec's "manual memory graph" note
// (spec.md §9).
package blockcache

import (
	"github.com/devine-kernel/ext2fs/pkg/blockdev"
	"github.com/devine-kernel/ext2fs/pkg/elog"
)

// DefaultCapacity is the default number of entries a Cache holds, matching
// spec.md §4.2's default of 256.
const DefaultCapacity = 256

const nilIndex = -1

type entry struct {
	blockNum   uint64
	buf        []byte
	valid      bool
	dirty      bool
	prev, next int
}

// Cache is a fixed-capacity, fully-associative, write-back LRU cache over a
// single blockdev.BlockDevice.
type Cache struct {
	dev       blockdev.BlockDevice
	blockSize int
	entries   []entry
	index     map[uint64]int
	free      []int
	head      int // most recently used
	tail      int // least recently used
	hits      uint64
	misses    uint64
	log       elog.Logger
}

// New creates a Cache over dev with the given capacity (number of entries).
// blockSize must equal dev.BlockSize(); this is enforced as a precondition
// per spec.md §9's resolution of the block-size open question.
func New(dev blockdev.BlockDevice, blockSize int, capacity int, log elog.Logger) *Cache {
	if blockSize != dev.BlockSize() {
		panic("blockcache: blockSize does not match device block size")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Cache{
		dev:       dev,
		blockSize: blockSize,
		entries:   make([]entry, capacity),
		index:     make(map[uint64]int, capacity),
		free:      make([]int, capacity),
		head:      nilIndex,
		tail:      nilIndex,
		log:       elog.Of(log),
	}

	for i := 0; i < capacity; i++ {
		c.entries[i].buf = make([]byte, blockSize)
		c.entries[i].prev = nilIndex
		c.entries[i].next = nilIndex
		c.free[i] = capacity - 1 - i // pop from the end; order doesn't matter
	}

	return c
}

// Capacity returns the number of entries the cache holds.
func (c *Cache) Capacity() int { return len(c.entries) }

// Stats returns the number of Read calls that hit and missed the cache.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

func (c *Cache) unlink(i int) {
	e := &c.entries[i]
	if e.prev != nilIndex {
		c.entries[e.prev].next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nilIndex {
		c.entries[e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nilIndex, nilIndex
}

func (c *Cache) pushFront(i int) {
	e := &c.entries[i]
	e.prev = nilIndex
	e.next = c.head
	if c.head != nilIndex {
		c.entries[c.head].prev = i
	}
	c.head = i
	if c.tail == nilIndex {
		c.tail = i
	}
}

func (c *Cache) touch(i int) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

// writeBack flushes entry i to the device if it is dirty, clearing the dirty
// flag on success. It leaves the entry untouched on failure.
func (c *Cache) writeBack(i int) error {
	e := &c.entries[i]
	if !e.dirty {
		return nil
	}
	if err := c.dev.WriteBlock(e.blockNum, e.buf); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// evictVictim picks a slot to reuse for a new block: a free (invalid) slot
// if one exists, otherwise the LRU tail. If the chosen slot holds a dirty
// valid entry, it is flushed first. Returns the slot index, or an error if
// the victim was dirty and the write-back failed — in which case the slot
// is left exactly as it was (spec.md §4.2's eviction failure semantics).
func (c *Cache) evictVictim() (int, error) {
	if n := len(c.free); n > 0 {
		i := c.free[n-1]
		c.free = c.free[:n-1]
		return i, nil
	}

	i := c.tail
	if i == nilIndex {
		panic("blockcache: no free slot and no LRU entry to evict")
	}

	if err := c.writeBack(i); err != nil {
		c.log.Warnf("blockcache: eviction write-back failed for block %d: %v", c.entries[i].blockNum, err)
		return nilIndex, err
	}

	delete(c.index, c.entries[i].blockNum)
	c.unlink(i)
	c.entries[i].valid = false

	return i, nil
}

// Read returns blockSize bytes for block n into out. On a hit the bytes are
// copied from the cached entry and it is moved to the front of the LRU
// list. On a miss, a victim slot is selected (flushing it first if dirty),
// the block is read from the device, and the new entry is installed at the
// front. Read failures leave the slot invalid and are surfaced to the
// caller.
func (c *Cache) Read(n uint64, out []byte) error {
	if i, ok := c.index[n]; ok {
		copy(out, c.entries[i].buf)
		c.touch(i)
		c.hits++
		return nil
	}

	c.misses++

	i, err := c.evictVictim()
	if err != nil {
		return err
	}

	e := &c.entries[i]
	if err := c.dev.ReadBlock(n, e.buf); err != nil {
		e.valid = false
		c.free = append(c.free, i)
		return err
	}

	e.blockNum = n
	e.valid = true
	e.dirty = false
	c.index[n] = i
	c.pushFront(i)

	copy(out, e.buf)

	return nil
}

// Write copies src into the cached entry for block n, marking it dirty. If
// the block is not already cached, a victim slot is selected (flushing it
// first if dirty) and a fresh entry is installed from src. No device write
// is issued by Write itself — that only happens on eviction or Flush.
func (c *Cache) Write(n uint64, src []byte) error {
	if i, ok := c.index[n]; ok {
		copy(c.entries[i].buf, src[:c.blockSize])
		c.entries[i].dirty = true
		c.touch(i)
		return nil
	}

	i, err := c.evictVictim()
	if err != nil {
		return err
	}

	e := &c.entries[i]
	copy(e.buf, src[:c.blockSize])
	e.blockNum = n
	e.valid = true
	e.dirty = true
	c.index[n] = i
	c.pushFront(i)

	return nil
}

// Flush writes back every dirty, valid entry, clearing their dirty flags on
// success. It continues through every entry even if some write-backs fail,
// and returns the number that failed to flush (0 means complete success),
// per spec.md §9's resolution of the partial-flush open question.
func (c *Cache) Flush() int {
	failures := 0
	for i := range c.entries {
		if !c.entries[i].valid || !c.entries[i].dirty {
			continue
		}
		if err := c.writeBack(i); err != nil {
			failures++
			c.log.Warnf("blockcache: flush failed for block %d: %v", c.entries[i].blockNum, err)
		}
	}
	return failures
}

// Invalidate flushes block n (if dirty) and marks its slot invalid. It is a
// no-op if n is not cached.
func (c *Cache) Invalidate(n uint64) error {
	i, ok := c.index[n]
	if !ok {
		return nil
	}

	if err := c.writeBack(i); err != nil {
		return err
	}

	delete(c.index, n)
	c.unlink(i)
	c.entries[i].valid = false
	c.free = append(c.free, i)

	return nil
}
