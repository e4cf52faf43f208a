package database

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"time"

	"github.com/ardanlabs/hashledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// BlockHeader represents the fields bound together by the seal of a block.
type BlockHeader struct {
	Number        uint64  `json:"index"`         // Position of the block in the chain, genesis is 0.
	TimeStamp     float64 `json:"timestamp"`     // Unix time in seconds the block was created.
	PrevBlockHash string  `json:"previous_hash"` // Seal of the previous block, ZeroHash for genesis.
	TransRoot     string  `json:"merkle_root"`   // Merkle root of the transactions in this block.
	Nonce         uint64  `json:"nonce"`         // Value identified to solve the proof of work.
}

// Block represents a group of transactions batched together. A Block is a
// value: once it has been sealed nothing in the ledger changes it.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
	Hash   string
}

// BlockArgs represents the information required to construct a block.
type BlockArgs struct {
	Number        uint64
	PrevBlockHash string
	TimeStamp     float64 // Zero means the current time.
	Trans         []Tx
	Hasher        signature.Hasher
}

// NewBlock constructs a block with a nonce of zero. The merkle root and the
// seal are calculated, the seal is not expected to solve any difficulty.
func NewBlock(args BlockArgs) (Block, error) {
	hasher := args.Hasher
	if hasher.New == nil {
		hasher = signature.SHA256
	}

	timeStamp := args.TimeStamp
	if timeStamp == 0 {
		timeStamp = Now()
	}

	tree, err := merkle.NewTree(args.Trans, merkle.WithHashStrategy[Tx](hasher.New))
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Header: BlockHeader{
			Number:        args.Number,
			TimeStamp:     timeStamp,
			PrevBlockHash: args.PrevBlockHash,
			TransRoot:     tree.RootHex(),
			Nonce:         0,
		},
		Trans: tree,
	}

	if b.Hash, err = b.ComputeHash(hasher); err != nil {
		return Block{}, err
	}

	return b, nil
}

// ComputeHash calculates the seal of the block from its current fields. The
// proof of work uses the same sealer, so a stored seal that doesn't match
// this value means the block was changed after it was sealed.
func (b Block) ComputeHash(hasher signature.Hasher) (string, error) {
	s, err := newSealer(b, hasher)
	if err != nil {
		return "", err
	}

	return s.seal(b.Header.Nonce), nil
}

// Now returns the current time as fractional unix seconds with microsecond
// precision.
func Now() float64 {
	return float64(time.Now().UTC().UnixMicro()) / 1e6
}

// =============================================================================

// sealFields is the canonical preimage of a seal. The nonce is encoded last
// so the encoding can be split into a fixed prefix and the nonce.
type sealFields struct {
	Index        uint64  `json:"index"`
	MerkleRoot   string  `json:"merkle_root"`
	PreviousHash string  `json:"previous_hash"`
	TimeStamp    float64 `json:"timestamp"`
	Transactions []Tx    `json:"transactions"`
	Nonce        uint64  `json:"nonce"`
}

// sealer produces seals for a block at any nonce. A sealer is not safe for
// concurrent use, every mining worker needs its own copy.
type sealer struct {
	prefix []byte
	buf    []byte
	sum    []byte
	hex    []byte
	h      hash.Hash
}

func newSealer(b Block, hasher signature.Hasher) (*sealer, error) {
	if hasher.New == nil {
		hasher = signature.SHA256
	}

	trans := []Tx{}
	if b.Trans != nil {
		trans = b.Trans.Values()
	}

	fields := sealFields{
		Index:        b.Header.Number,
		MerkleRoot:   b.Header.TransRoot,
		PreviousHash: b.Header.PrevBlockHash,
		TimeStamp:    b.Header.TimeStamp,
		Transactions: trans,
	}

	data, err := signature.Canonical(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}

	// The encoding ends with `"nonce":0}`, drop the 0} so the nonce can be
	// appended in its place.
	if !bytes.HasSuffix(data, []byte(`"nonce":0}`)) {
		return nil, errors.New("unexpected seal encoding")
	}
	prefix := data[:len(data)-2]

	h := hasher.New()
	s := sealer{
		prefix: prefix,
		buf:    make([]byte, 0, len(prefix)+21),
		sum:    make([]byte, 0, h.Size()),
		hex:    make([]byte, h.Size()*2),
		h:      h,
	}

	return &s, nil
}

// clone returns a sealer for the same block with its own buffers.
func (s *sealer) clone(hasher signature.Hasher) *sealer {
	h := hasher.New()
	return &sealer{
		prefix: s.prefix,
		buf:    make([]byte, 0, cap(s.buf)),
		sum:    make([]byte, 0, h.Size()),
		hex:    make([]byte, h.Size()*2),
		h:      h,
	}
}

// seal returns the hex seal of the block at the specified nonce.
func (s *sealer) seal(nonce uint64) string {
	s.buf = append(s.buf[:0], s.prefix...)
	s.buf = strconv.AppendUint(s.buf, nonce, 10)
	s.buf = append(s.buf, '}')

	s.h.Reset()
	s.h.Write(s.buf)
	s.sum = s.h.Sum(s.sum[:0])

	hex.Encode(s.hex, s.sum)
	return string(s.hex)
}

// =============================================================================

// BlockData represents what is written to storage and exported in a
// snapshot. The hashes are hex encoded.
type BlockData struct {
	Number        uint64  `json:"index"`
	TimeStamp     float64 `json:"timestamp"`
	Trans         []Tx    `json:"transactions"`
	PrevBlockHash string  `json:"previous_hash"`
	TransRoot     string  `json:"merkle_root"`
	Nonce         uint64  `json:"nonce"`
	Hash          string  `json:"hash"`
}

// Snapshot represents a full export of the chain.
type Snapshot struct {
	Chain      []BlockData `json:"chain"`
	Difficulty uint        `json:"difficulty"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Number:        block.Header.Number,
		TimeStamp:     block.Header.TimeStamp,
		Trans:         block.Trans.Values(),
		PrevBlockHash: block.Header.PrevBlockHash,
		TransRoot:     block.Header.TransRoot,
		Nonce:         block.Header.Nonce,
		Hash:          block.Hash,
	}
}

// ToBlock converts a BlockData into a Block. The stored seal and merkle root
// are kept as they are, nothing is recalculated or checked here.
func ToBlock(blockData BlockData, hasher signature.Hasher) (Block, error) {
	if hasher.New == nil {
		hasher = signature.SHA256
	}

	tree, err := merkle.NewTree(blockData.Trans, merkle.WithHashStrategy[Tx](hasher.New))
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Header: BlockHeader{
			Number:        blockData.Number,
			TimeStamp:     blockData.TimeStamp,
			PrevBlockHash: blockData.PrevBlockHash,
			TransRoot:     blockData.TransRoot,
			Nonce:         blockData.Nonce,
		},
		Trans: tree,
		Hash:  blockData.Hash,
	}

	return b, nil
}

// ToBlocks converts every block in the snapshot.
func ToBlocks(snap Snapshot, hasher signature.Hasher) ([]Block, error) {
	blocks := make([]Block, len(snap.Chain))
	for i, blockData := range snap.Chain {
		b, err := ToBlock(blockData, hasher)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", blockData.Number, err)
		}
		blocks[i] = b
	}

	return blocks, nil
}
