package commands

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// Tamper changes the amount of the first transaction in the specified block
// and validates the altered chain. The snapshot on disk is never modified.
func Tamper(path string, hasher signature.Hasher, number uint64, amount int64, evHandler func(v string, args ...any)) (database.Validation, error) {
	snap, _, err := load(path, hasher)
	if err != nil {
		return database.Validation{}, err
	}

	if number >= uint64(len(snap.Chain)) {
		return database.Validation{}, fmt.Errorf("block %d not in chain of %d blocks", number, len(snap.Chain))
	}

	blockData := snap.Chain[number]
	if len(blockData.Trans) == 0 {
		return database.Validation{}, errors.New("block has no transactions to alter")
	}

	trans := make([]database.Tx, len(blockData.Trans))
	copy(trans, blockData.Trans)
	trans[0].Amount = amount

	blockData.Trans = trans
	snap.Chain[number] = blockData

	blocks, err := database.ToBlocks(snap, hasher)
	if err != nil {
		return database.Validation{}, err
	}

	return database.ValidateChain(blocks, snap.Difficulty, hasher, evHandler), nil
}
