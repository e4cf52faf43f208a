// Package disk implements the ledger storage as one JSON file per block.
package disk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Serializer interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified block and stores it on disk in a file labeled
// with the block number. The file is written under a temporary name and
// renamed so a partially written block is never read back.
func (d *Disk) Write(blockData database.BlockData) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(blockData, "", "  ")
	if err != nil {
		return err
	}

	path := d.getPath(blockData.Number)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (d *Disk) GetBlock(num uint64) (database.BlockData, error) {
	data, err := os.ReadFile(d.getPath(num))
	if err != nil {
		return database.BlockData{}, err
	}

	// Numbers inside transaction data are kept as written so the block
	// encodes the same way it did when it was sealed.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var blockData database.BlockData
	if err := dec.Decode(&blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("decoding block %d: %w", num, err)
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (d *Disk) ForEach() database.Iterator {
	return &Iterator{disk: d}
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		if _, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 64); err != nil {
			continue
		}

		if err := os.Remove(filepath.Join(d.dbPath, name)); err != nil {
			return err
		}
	}

	return nil
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(blockNum uint64) string {
	name := strconv.FormatUint(blockNum, 10)
	return filepath.Join(d.dbPath, fmt.Sprintf("%s.json", name))
}

// =============================================================================

// Iterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the database
// Iterator interface.
type Iterator struct {
	disk *Disk  // Access to the disk storage API.
	next uint64 // Next block number to read.
	eoc  bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (it *Iterator) Next() (database.BlockData, error) {
	if it.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := it.disk.GetBlock(it.next)
	if errors.Is(err, fs.ErrNotExist) {
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
