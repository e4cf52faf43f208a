// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been reworked into generics and a level based layout.

// Package merkle provides an implementation of a merkle tree for validation
// support for the ledger.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree. Encode must return a canonical encoding of the value, the
// tree hashes these bytes with its own hash strategy.
type Hashable[T any] interface {
	Encode() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Side identifies which side of the running hash a proof sibling sits on.
type Side int

// Set of proof sides.
const (
	Left  Side = iota // sibling is hashed before the running hash.
	Right             // sibling is hashed after the running hash.
)

// String implements the fmt.Stringer interface.
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "left":
		*s = Left
	case "right":
		*s = Right
	default:
		return fmt.Errorf("invalid proof side %q", text)
	}
	return nil
}

// ProofStep is one sibling on the path from a leaf to the root.
type ProofStep struct {
	Side Side          `json:"side"`
	Hash hexutil.Bytes `json:"hash"`
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint. Levels[0] holds the leaf hashes
// in input order and the last level holds the root.
type Tree[T Hashable[T]] struct {
	Levels       [][][]byte
	MerkleRoot   []byte
	values       []T
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface. An empty set of
// values produces a tree whose root is all zeros.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the levels of the tree from the specified data. If the
// tree has been generated previously, the tree is re-generated from scratch.
func (t *Tree[T]) Generate(values []T) error {
	vals := make([]T, len(values))
	copy(vals, values)

	if len(vals) == 0 {
		t.Levels = nil
		t.MerkleRoot = make([]byte, t.hashStrategy().Size())
		t.values = vals
		return nil
	}

	leafs := make([][]byte, len(vals))
	for i, value := range vals {
		data, err := value.Encode()
		if err != nil {
			return fmt.Errorf("leaf %d: %w", i, err)
		}
		leafs[i] = t.sum(data)
	}

	levels := [][][]byte{leafs}
	for level := leafs; len(level) > 1; {
		level = t.buildLevel(level)
		levels = append(levels, level)
	}

	t.Levels = levels
	t.MerkleRoot = levels[len(levels)-1][0]
	t.values = vals

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.values)
}

// Height returns the number of levels above the leafs.
func (t *Tree[T]) Height() int {
	if len(t.Levels) == 0 {
		return 0
	}
	return len(t.Levels) - 1
}

// Proof returns the set of sibling hashes and the side each sits on for
// proving the value at the specified index is in the tree.
//
// When a level has an odd number of nodes the last node is paired with
// itself. A node in that position has no real sibling, so no step is
// emitted for that level. VerifyProof accounts for this by hashing the
// running hash with itself at those levels.
//
// Given leafHash and a proof [(right, h0), (left, h1)] the root is:
//
//	h = hash(leafHash | h0)
//	root = hash(h1 | h)
func (t *Tree[T]) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.values) {
		return nil, fmt.Errorf("index %d out of range, leafs %d", index, len(t.values))
	}

	var proof []ProofStep
	for _, level := range t.Levels[:len(t.Levels)-1] {
		switch {
		case index%2 == 1:
			proof = append(proof, ProofStep{Side: Left, Hash: level[index-1]})
		case index+1 < len(level):
			proof = append(proof, ProofStep{Side: Right, Hash: level[index+1]})
		}
		index /= 2
	}

	return proof, nil
}

// ProofFor locates the value in the tree and returns its index and proof.
func (t *Tree[T]) ProofFor(value T) (int, []ProofStep, error) {
	for i, v := range t.values {
		if !v.Equals(value) {
			continue
		}

		proof, err := t.Proof(i)
		if err != nil {
			return 0, nil, err
		}
		return i, proof, nil
	}

	return 0, nil, errors.New("unable to find data in tree")
}

// VerifyProof validates the proof for the leaf at the specified index against
// the root of this tree.
func (t *Tree[T]) VerifyProof(index int, proof []ProofStep) error {
	if index < 0 || index >= len(t.values) {
		return fmt.Errorf("index %d out of range, leafs %d", index, len(t.values))
	}

	return VerifyProof(t.hashStrategy, t.MerkleRoot, t.Levels[0][index], index, len(t.values), proof)
}

// Verify recalculates every level of the tree from the values it holds and
// checks the result against the stored levels and root.
func (t *Tree[T]) Verify() error {
	other := Tree[T]{hashStrategy: t.hashStrategy}
	if err := other.Generate(t.values); err != nil {
		return err
	}

	if len(other.Levels) != len(t.Levels) {
		return errors.New("tree height does not match values")
	}

	for i := range other.Levels {
		if len(other.Levels[i]) != len(t.Levels[i]) {
			return fmt.Errorf("level %d width does not match values", i)
		}
		for j := range other.Levels[i] {
			if !bytes.Equal(other.Levels[i][j], t.Levels[i][j]) {
				return fmt.Errorf("level %d node %d hash invalid", i, j)
			}
		}
	}

	if !bytes.Equal(t.MerkleRoot, other.MerkleRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if the
// hashes on its path are valid for that data.
func (t *Tree[T]) VerifyData(value T) error {
	index, proof, err := t.ProofFor(value)
	if err != nil {
		return err
	}

	data, err := value.Encode()
	if err != nil {
		return err
	}

	return VerifyProof(t.hashStrategy, t.MerkleRoot, t.sum(data), index, len(t.values), proof)
}

// Values returns a copy of the values stored in the tree in leaf order.
func (t *Tree[T]) Values() []T {
	values := make([]T, len(t.values))
	copy(values, t.values)
	return values
}

// Len returns the number of values in the tree.
func (t *Tree[T]) Len() int {
	return len(t.values)
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hex.EncodeToString(t.MerkleRoot)
}

// String returns a string representation of the tree, one level per line
// starting with the root.
func (t *Tree[T]) String() string {
	var b bytes.Buffer
	for i := len(t.Levels) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "level %d:", i)
		for _, h := range t.Levels[i] {
			fmt.Fprintf(&b, " %x", h)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. I don't want this to happen.
// Use the Values function to return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// =============================================================================

// VerifyProof folds the leaf hash through the proof and compares the result
// to the root. The leaf index and the number of leafs in the tree identify
// the levels where the node was paired with itself and no step exists.
func VerifyProof(hashStrategy func() hash.Hash, root []byte, leaf []byte, index int, leafCount int, proof []ProofStep) error {
	if hashStrategy == nil {
		hashStrategy = sha256.New
	}

	if index < 0 || index >= leafCount {
		return fmt.Errorf("index %d out of range, leafs %d", index, leafCount)
	}

	running := leaf
	for width := leafCount; width > 1; width = (width + 1) / 2 {
		switch {
		case index%2 == 1:
			if len(proof) == 0 || proof[0].Side != Left {
				return fmt.Errorf("proof missing left sibling at width %d", width)
			}
			running = hashPair(hashStrategy, proof[0].Hash, running)
			proof = proof[1:]

		case index+1 < width:
			if len(proof) == 0 || proof[0].Side != Right {
				return fmt.Errorf("proof missing right sibling at width %d", width)
			}
			running = hashPair(hashStrategy, running, proof[0].Hash)
			proof = proof[1:]

		default:
			running = hashPair(hashStrategy, running, running)
		}
		index /= 2
	}

	if len(proof) != 0 {
		return fmt.Errorf("proof has %d unused steps", len(proof))
	}

	if !bytes.Equal(running, root) {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
	}

	return nil
}

// =============================================================================

// buildLevel combines each pair of nodes left to right into the next level.
// The last node of an odd level is paired with itself.
func (t *Tree[T]) buildLevel(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)

	for i := 0; i < len(level); i += 2 {
		left, right := i, i+1
		if right == len(level) {
			right = i
		}
		next = append(next, hashPair(t.hashStrategy, level[left], level[right]))
	}

	return next
}

func (t *Tree[T]) sum(data []byte) []byte {
	h := t.hashStrategy()
	h.Write(data)
	return h.Sum(nil)
}

func hashPair(hashStrategy func() hash.Hash, left []byte, right []byte) []byte {
	h := hashStrategy()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
