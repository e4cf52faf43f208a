// Package database handles the single node ledger: the blocks sealed so far,
// the pending transactions waiting to be mined and the balances derived from
// the chain.
package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/hashledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// ErrChainChanged is returned when the chain tip moved while a block was
// being mined on top of it.
var ErrChainChanged = errors.New("chain changed while mining")

// ErrNotFound is returned when a block or transaction does not exist.
var ErrNotFound = errors.New("not found")

// =============================================================================

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Config represents the configuration required to open the ledger.
type Config struct {
	Genesis    genesis.Genesis
	Serializer Serializer
	Workers    int
	EvHandler  func(v string, args ...any)
}

// Database manages the chain of blocks, the pending transactions and the
// balance of every account seen on the chain.
type Database struct {
	mu      sync.RWMutex
	mineSem chan struct{}

	genesis    genesis.Genesis
	hasher     signature.Hasher
	difficulty uint
	workers    int
	evHandler  func(v string, args ...any)

	blocks   []Block
	pending  []Tx
	balances map[AccountID]int64

	serializer Serializer
}

// New constructs the ledger. Blocks already held by the serializer are
// validated and loaded. When there are none, a genesis block is sealed and
// written.
func New(ctx context.Context, cfg Config) (*Database, error) {
	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db := Database{
		genesis:    cfg.Genesis,
		hasher:     cfg.Genesis.Hasher(),
		difficulty: uint(cfg.Genesis.Difficulty),
		workers:    cfg.Workers,
		evHandler:  ev,
		balances:   make(map[AccountID]int64),
		serializer: cfg.Serializer,
		mineSem:    make(chan struct{}, 1),
	}

	if err := db.load(); err != nil {
		return nil, err
	}

	if len(db.blocks) > 0 {
		ev("database: New: loaded: blocks[%d]: latest[%s]", len(db.blocks), db.blocks[len(db.blocks)-1].Hash)
		return &db, nil
	}

	var timeStamp float64
	if !cfg.Genesis.Date.IsZero() {
		timeStamp = float64(cfg.Genesis.Date.UTC().UnixMicro()) / 1e6
	}

	block, err := POW(ctx, POWArgs{
		BlockArgs: BlockArgs{
			Number:        0,
			PrevBlockHash: signature.ZeroHash,
			TimeStamp:     timeStamp,
			Trans:         []Tx{GenesisTx(cfg.Genesis.Data)},
			Hasher:        db.hasher,
		},
		Difficulty: db.difficulty,
		Workers:    db.workers,
		EvHandler:  ev,
	})
	if err != nil {
		return nil, fmt.Errorf("sealing genesis: %w", err)
	}

	if err := db.serializer.Write(NewBlockData(block)); err != nil {
		return nil, fmt.Errorf("writing genesis: %w", err)
	}
	db.appendBlock(block)

	ev("database: New: genesis created: hash[%s]", block.Hash)

	return &db, nil
}

// load reads every block from the serializer, validating each one against
// the block before it.
func (db *Database) load() error {
	iter := db.serializer.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return err
		}

		block, err := ToBlock(blockData, db.hasher)
		if err != nil {
			return err
		}

		if exp := uint64(len(db.blocks)); block.Header.Number != exp {
			return fmt.Errorf("block is out of order, got %d, exp %d", block.Header.Number, exp)
		}

		switch block.Header.Number {
		case 0:
			if err := validateSeal(block, db.hasher); err != nil {
				return err
			}
		default:
			if _, err := ValidateNextBlock(db.blocks[len(db.blocks)-1], block, db.difficulty, db.hasher); err != nil {
				return err
			}
		}

		if block.Header.TransRoot != block.Trans.RootHex() {
			return fmt.Errorf("merkle root does not match transactions, blk[%d]: got %s, exp %s", block.Header.Number, block.Trans.RootHex(), block.Header.TransRoot)
		}

		db.appendBlock(block)
	}

	return nil
}

// Close closes the open blocks database.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// =============================================================================

// AddTransaction appends the transaction to the pending buffer. The only
// check performed is that the transaction can be canonically encoded. The
// buffer holds its own copy of the transaction.
func (db *Database) AddTransaction(tx Tx) error {
	tx, err := tx.normalize()
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.pending = append(db.pending, tx)
	db.evHandler("database: AddTransaction: tx[%s]: pending[%d]", tx, len(db.pending))

	return nil
}

// MinePending seals every pending transaction into the next block and
// appends it to the chain. The pending buffer is then reset to hold the
// reward for the beneficiary, so the reward for this block is mined as part
// of the next one. Transactions that arrived while mining stay pending after
// the reward. Only one block is mined at a time, a caller waiting its turn
// gives up when the context is done.
func (db *Database) MinePending(ctx context.Context, beneficiary AccountID) (Block, error) {
	select {
	case db.mineSem <- struct{}{}:
	case <-ctx.Done():
		return Block{}, ctx.Err()
	}
	defer func() { <-db.mineSem }()

	db.mu.RLock()
	prevBlock := db.blocks[len(db.blocks)-1]
	trans := make([]Tx, len(db.pending))
	copy(trans, db.pending)
	db.mu.RUnlock()

	block, err := POW(ctx, POWArgs{
		BlockArgs: BlockArgs{
			Number:        prevBlock.Header.Number + 1,
			PrevBlockHash: prevBlock.Hash,
			Trans:         trans,
			Hasher:        db.hasher,
		},
		Difficulty: db.difficulty,
		Workers:    db.workers,
		EvHandler:  db.evHandler,
	})
	if err != nil {
		return Block{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.blocks[len(db.blocks)-1].Hash != prevBlock.Hash {
		return Block{}, ErrChainChanged
	}

	if err := db.serializer.Write(NewBlockData(block)); err != nil {
		return Block{}, fmt.Errorf("writing block: %w", err)
	}
	db.appendBlock(block)

	arrived := db.pending[len(trans):]
	pending := make([]Tx, 0, len(arrived)+1)
	pending = append(pending, NewRewardTx(beneficiary, db.genesis.MiningReward))
	db.pending = append(pending, arrived...)

	db.evHandler("database: MinePending: blk[%d]: hash[%s]: trans[%d]: pending[%d]", block.Header.Number, block.Hash, len(trans), len(db.pending))

	return db.clone(block), nil
}

// Validate walks the full chain re-deriving every seal. See ValidateChain.
func (db *Database) Validate() Validation {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return ValidateChain(db.blocks, db.difficulty, db.hasher, db.evHandler)
}

// BalanceOf returns the amount received minus the amount sent by the
// account across every transaction in the chain.
func (db *Database) BalanceOf(accountID AccountID) int64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.balances[accountID]
}

// Balances returns the balance of every account seen on the chain sorted
// by account.
func (db *Database) Balances() []AccountBalance {
	db.mu.RLock()
	defer db.mu.RUnlock()

	balances := make([]AccountBalance, 0, len(db.balances))
	for accountID, balance := range db.balances {
		balances = append(balances, AccountBalance{AccountID: accountID, Balance: balance})
	}
	sort.Sort(byAccount(balances))

	return balances
}

// =============================================================================

// Genesis returns the genesis settings of the chain.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Hasher returns the hash strategy used by the chain.
func (db *Database) Hasher() signature.Hasher {
	return db.hasher
}

// Difficulty returns the number of leading zeros a seal needs.
func (db *Database) Difficulty() uint {
	return db.difficulty
}

// Len returns the number of blocks in the chain.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.clone(db.blocks[len(db.blocks)-1])
}

// GetBlock returns the block at the specified position.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("block %d: %w", num, ErrNotFound)
	}

	return db.clone(db.blocks[num]), nil
}

// Blocks returns a deep copy of the chain. Changes made by the caller can't
// reach the chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	for i, block := range db.blocks {
		blocks[i] = db.clone(block)
	}

	return blocks
}

// QueryBlocksByAccount returns the blocks holding a transaction sent or
// received by the account. An empty account returns every block.
func (db *Database) QueryBlocksByAccount(accountID AccountID) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Block
	for _, block := range db.blocks {
		if accountID == "" {
			out = append(out, db.clone(block))
			continue
		}

		for _, tx := range block.Trans.Values() {
			if tx.From == accountID || tx.To == accountID {
				out = append(out, db.clone(block))
				break
			}
		}
	}

	return out
}

// Pending returns a copy of the transactions waiting to be mined.
func (db *Database) Pending() []Tx {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return cloneTxs(db.pending)
}

// PendingCount returns the number of transactions waiting to be mined.
func (db *Database) PendingCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.pending)
}

// Snapshot exports the chain in its persisted form.
func (db *Database) Snapshot() Snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snap := Snapshot{
		Chain:      make([]BlockData, len(db.blocks)),
		Difficulty: db.difficulty,
	}
	for i, block := range db.blocks {
		blockData := NewBlockData(block)
		blockData.Trans = cloneTxs(blockData.Trans)
		snap.Chain[i] = blockData
	}

	return snap
}

// =============================================================================

// TxProof is the information needed to prove a transaction is part of a
// block without the rest of the block's transactions.
type TxProof struct {
	Number    uint64             `json:"block"`
	Index     int                `json:"index"`
	Count     int                `json:"count"`
	Tx        Tx                 `json:"tx"`
	Leaf      string             `json:"leaf"`
	Root      string             `json:"merkle_root"`
	Proof     []merkle.ProofStep `json:"proof"`
	BlockHash string             `json:"block_hash"`
}

// Proof returns the merkle proof for the transaction at the specified index
// in the specified block.
func (db *Database) Proof(num uint64, index int) (TxProof, error) {
	block, err := db.GetBlock(num)
	if err != nil {
		return TxProof{}, err
	}

	if index < 0 || index >= block.Trans.Len() {
		return TxProof{}, fmt.Errorf("block %d tx %d: %w", num, index, ErrNotFound)
	}

	proof, err := block.Trans.Proof(index)
	if err != nil {
		return TxProof{}, err
	}

	txp := TxProof{
		Number:    num,
		Index:     index,
		Count:     block.Trans.Len(),
		Tx:        block.Trans.Values()[index],
		Leaf:      fmt.Sprintf("%x", block.Trans.Levels[0][index]),
		Root:      block.Header.TransRoot,
		Proof:     proof,
		BlockHash: block.Hash,
	}

	return txp, nil
}

// =============================================================================

// clone returns a copy of the block with its own merkle tree and
// transactions. The caller must hold a lock or own the block.
func (db *Database) clone(block Block) Block {
	tree, err := merkle.NewTree(cloneTxs(block.Trans.Values()), merkle.WithHashStrategy[Tx](db.hasher.New))
	if err != nil {

		// The values were hashed once already when the block was created.
		return block
	}
	block.Trans = tree

	return block
}

// appendBlock adds the block to the chain and applies its transactions to
// the balances. The caller must hold the write lock or own the value.
func (db *Database) appendBlock(block Block) {
	db.blocks = append(db.blocks, block)

	for _, tx := range block.Trans.Values() {
		if tx.From != "" {
			db.balances[tx.From] -= tx.Amount
		}
		if tx.To != "" {
			db.balances[tx.To] += tx.Amount
		}
	}
}
