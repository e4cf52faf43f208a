// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"fmt"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/snapshot"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
	"github.com/pterm/pterm"
)

// Validate loads the snapshot and re-derives every seal in the chain.
func Validate(path string, hasher signature.Hasher, evHandler func(v string, args ...any)) (database.Validation, error) {
	snap, blocks, err := load(path, hasher)
	if err != nil {
		return database.Validation{}, err
	}

	return database.ValidateChain(blocks, snap.Difficulty, hasher, evHandler), nil
}

// PrintValidation reports the result of a validation to the terminal.
func PrintValidation(v database.Validation) {
	if v.Valid {
		pterm.Success.Println("chain is valid")
		return
	}

	pterm.Error.Printfln("chain is invalid at block %d: check[%s]: %s", v.Number, v.Check, v.Reason)
}

func load(path string, hasher signature.Hasher) (database.Snapshot, []database.Block, error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return database.Snapshot{}, nil, err
	}

	blocks, err := database.ToBlocks(snap, hasher)
	if err != nil {
		return database.Snapshot{}, nil, fmt.Errorf("converting blocks: %w", err)
	}

	return snap, blocks, nil
}
