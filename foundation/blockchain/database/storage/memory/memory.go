// Package memory implements the ledger storage as a slice in memory. Nothing
// survives the process.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
)

// Memory represents the serialization implementation for holding blocks in
// memory. This implements the database.Serializer interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.BlockData
}

// New constructs an empty Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close has nothing to release.
func (m *Memory) Close() error {
	return nil
}

// Write appends the block. Blocks must be written in order.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exp := uint64(len(m.blocks)); blockData.Number != exp {
		return fmt.Errorf("block out of order, got %d, exp %d", blockData.Number, exp)
	}

	m.blocks = append(m.blocks, blockData)
	return nil
}

// GetBlock returns the block by number.
func (m *Memory) GetBlock(num uint64) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num >= uint64(len(m.blocks)) {
		return database.BlockData{}, fmt.Errorf("block %d: %w", num, database.ErrNotFound)
	}

	return m.blocks[num], nil
}

// ForEach returns an iterator to walk through all the blocks starting with
// the genesis block.
func (m *Memory) ForEach() database.Iterator {
	return &Iterator{memory: m}
}

// Reset drops every block.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// =============================================================================

// Iterator walks the blocks held in memory.
type Iterator struct {
	memory *Memory
	next   uint64
	eoc    bool
}

// Next retrieves the next block.
func (it *Iterator) Next() (database.BlockData, error) {
	if it.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := it.memory.GetBlock(it.next)
	if errors.Is(err, database.ErrNotFound) {
		it.eoc = true
		return database.BlockData{}, err
	}
	it.next++

	return blockData, err
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}
