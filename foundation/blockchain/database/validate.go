package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// Set of errors reported by chain validation.
var (
	ErrSealMismatch     = errors.New("block seal does not match its contents")
	ErrBrokenLinkage    = errors.New("previous hash does not match the previous block")
	ErrDifficultyNotMet = errors.New("block seal does not meet the difficulty")
)

// =============================================================================

// Check identifies one of the checks performed on a block.
type Check int

// Set of checks in the order they are performed.
const (
	CheckNone Check = iota
	CheckSeal
	CheckLinkage
	CheckDifficulty
)

// String implements the fmt.Stringer interface.
func (c Check) String() string {
	switch c {
	case CheckSeal:
		return "seal"
	case CheckLinkage:
		return "linkage"
	case CheckDifficulty:
		return "difficulty"
	}
	return "none"
}

// MarshalText implements the encoding.TextMarshaler interface.
func (c Check) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Validation is the result of validating a chain. An invalid chain is
// reported here, it is not returned as an error.
type Validation struct {
	Valid  bool   `json:"valid"`
	Number uint64 `json:"index"`            // Block that failed.
	Check  Check  `json:"check"`            // Check that failed.
	Reason string `json:"reason,omitempty"` // Err as text.
	Err    error  `json:"-"`
}

// =============================================================================

// ValidateChain walks the blocks re-deriving every seal. The genesis block is
// only checked for seal integrity. Every block after it must pass, in order,
// the seal, linkage and difficulty checks. The walk stops at the first
// failure.
func ValidateChain(blocks []Block, difficulty uint, hasher signature.Hasher, evHandler func(v string, args ...any)) Validation {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	invalid := func(number uint64, check Check, err error) Validation {
		ev("database: ValidateChain: INVALID: blk[%d]: check[%s]: %s", number, check, err)
		return Validation{
			Number: number,
			Check:  check,
			Reason: err.Error(),
			Err:    err,
		}
	}

	if len(blocks) > 0 {
		if err := validateSeal(blocks[0], hasher); err != nil {
			return invalid(blocks[0].Header.Number, CheckSeal, err)
		}
	}

	for i := 1; i < len(blocks); i++ {
		check, err := ValidateNextBlock(blocks[i-1], blocks[i], difficulty, hasher)
		if err != nil {
			return invalid(blocks[i].Header.Number, check, err)
		}
	}

	ev("database: ValidateChain: VALID: blocks[%d]", len(blocks))

	return Validation{Valid: true}
}

// ValidateNextBlock takes a block and validates it against the block before
// it. It returns the first check that failed.
func ValidateNextBlock(prevBlock Block, block Block, difficulty uint, hasher signature.Hasher) (Check, error) {
	if err := validateSeal(block, hasher); err != nil {
		return CheckSeal, err
	}

	if block.Header.PrevBlockHash != prevBlock.Hash {
		return CheckLinkage, fmt.Errorf("%w: blk[%d]: got %s, exp %s", ErrBrokenLinkage, block.Header.Number, block.Header.PrevBlockHash, prevBlock.Hash)
	}

	if !isHashSolved(difficulty, block.Hash) {
		return CheckDifficulty, fmt.Errorf("%w: blk[%d]: hash %s, difficulty %d", ErrDifficultyNotMet, block.Header.Number, block.Hash, difficulty)
	}

	return CheckNone, nil
}

// validateSeal recalculates the seal of the block and compares it to the
// stored seal.
func validateSeal(block Block, hasher signature.Hasher) error {
	hash, err := block.ComputeHash(hasher)
	if err != nil {
		return fmt.Errorf("%w: blk[%d]: %w", ErrSealMismatch, block.Header.Number, err)
	}

	if hash != block.Hash {
		return fmt.Errorf("%w: blk[%d]: got %s, exp %s", ErrSealMismatch, block.Header.Number, hash, block.Hash)
	}

	return nil
}
