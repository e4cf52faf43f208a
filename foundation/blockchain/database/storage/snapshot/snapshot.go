// Package snapshot implements the ledger storage as a single JSON document
// holding the whole chain and the difficulty it was mined at.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
)

// Snapshot represents the serialization implementation for storing the chain
// in one file. The file is rewritten on every write. This implements the
// database.Serializer interface.
type Snapshot struct {
	mu   sync.RWMutex
	path string
	snap database.Snapshot
}

// New constructs a Snapshot value for use. An existing file at the path is
// loaded, otherwise the file is created on the first write.
func New(path string, difficulty uint) (*Snapshot, error) {
	snap, err := Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		snap = database.Snapshot{Difficulty: difficulty}

	case err != nil:
		return nil, err
	}

	if snap.Difficulty != difficulty {
		return nil, fmt.Errorf("snapshot mined at difficulty %d, exp %d", snap.Difficulty, difficulty)
	}

	s := Snapshot{
		path: path,
		snap: snap,
	}

	return &s, nil
}

// Close has nothing to release since the file is closed after each write.
func (s *Snapshot) Close() error {
	return nil
}

// Write appends the block and rewrites the file.
func (s *Snapshot) Write(blockData database.BlockData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp := uint64(len(s.snap.Chain)); blockData.Number != exp {
		return fmt.Errorf("block out of order, got %d, exp %d", blockData.Number, exp)
	}

	snap := database.Snapshot{
		Chain:      append(s.snap.Chain[:len(s.snap.Chain):len(s.snap.Chain)], blockData),
		Difficulty: s.snap.Difficulty,
	}

	if err := Save(s.path, snap); err != nil {
		return err
	}
	s.snap = snap

	return nil
}

// GetBlock returns the block by number.
func (s *Snapshot) GetBlock(num uint64) (database.BlockData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if num >= uint64(len(s.snap.Chain)) {
		return database.BlockData{}, fmt.Errorf("block %d: %w", num, database.ErrNotFound)
	}

	return s.snap.Chain[num], nil
}

// ForEach returns an iterator to walk through all the blocks starting with
// the genesis block.
func (s *Snapshot) ForEach() database.Iterator {
	return &Iterator{snapshot: s}
}

// Reset drops every block and removes the file.
func (s *Snapshot) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.snap.Chain = nil

	return nil
}

// =============================================================================

// Iterator walks the blocks held by the snapshot.
type Iterator struct {
	snapshot *Snapshot
	next     uint64
	eoc      bool
}

// Next retrieves the next block.
func (it *Iterator) Next() (database.BlockData, error) {
	if it.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := it.snapshot.GetBlock(it.next)
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

// =============================================================================

// Load reads a snapshot file. Numbers inside transaction data are kept as
// written so every block encodes the same way it did when it was sealed.
func Load(path string) (database.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return database.Snapshot{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var snap database.Snapshot
	if err := dec.Decode(&snap); err != nil {
		return database.Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}

	return snap, nil
}

// Save writes the snapshot to the path. The document is written to a
// temporary file in the same directory and renamed over the path.
func Save(path string, snap database.Snapshot) error {
	if snap.Chain == nil {
		snap.Chain = []database.BlockData{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}
