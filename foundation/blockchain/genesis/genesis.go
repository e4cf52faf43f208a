// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// MaxDifficulty is the number of hex characters in a 256 bit digest. A seal
// can't have more leading zeros than that.
const MaxDifficulty = 64

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date"`            // Timestamp of the genesis block. Zero means the time the chain is created.
	Difficulty    uint16    `json:"difficulty"`      // Number of leading hex zeros a seal needs.
	MiningReward  int64     `json:"mining_reward"`   // Reward paid by the network for mining a block.
	TransPerBlock uint16    `json:"trans_per_block"` // Pending count that triggers the mining worker. Zero disables it.
	HashStrategy  string    `json:"hash_strategy"`   // Name of the hash strategy used for every digest.
	Data          string    `json:"data"`            // Payload of the genesis transaction.
}

// Default returns the genesis settings used when no file is provided.
func Default() Genesis {
	return Genesis{
		Difficulty:   4,
		MiningReward: 50,
		HashStrategy: signature.SHA256.Name,
		Data:         "Genesis Block",
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis settings can be used to run a chain.
func (g Genesis) Validate() error {
	if g.Difficulty > MaxDifficulty {
		return fmt.Errorf("difficulty %d is greater than %d", g.Difficulty, MaxDifficulty)
	}

	if g.MiningReward < 0 {
		return errors.New("mining reward can't be negative")
	}

	if _, err := signature.HasherByName(g.HashStrategy); err != nil {
		return err
	}

	return nil
}

// Hasher returns the hash strategy named in the genesis settings.
func (g Genesis) Hasher() signature.Hasher {
	h, err := signature.HasherByName(g.HashStrategy)
	if err != nil {
		return signature.SHA256
	}
	return h
}
