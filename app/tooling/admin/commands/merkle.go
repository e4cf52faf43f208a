package commands

import (
	"fmt"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
	"github.com/pterm/pterm"
)

// Merkle builds a tree over one transaction per data value, prints every
// level and proves the transaction at the specified index.
func Merkle(data []string, index int, hasher signature.Hasher) error {
	tree, err := merkleTree(data, hasher)
	if err != nil {
		return err
	}

	for i, level := range tree.Levels {
		pterm.Info.Printfln("level %d", i)
		for _, h := range level {
			fmt.Printf("  %x\n", h)
		}
	}

	pterm.Success.Printfln("root %s", tree.RootHex())

	proof, err := tree.Proof(index)
	if err != nil {
		return err
	}

	pterm.Info.Printfln("proof for index %d", index)
	for _, step := range proof {
		fmt.Printf("  %-5s %x\n", step.Side, []byte(step.Hash))
	}

	if err := tree.VerifyProof(index, proof); err != nil {
		return fmt.Errorf("proof failed: %w", err)
	}
	pterm.Success.Println("proof verified")

	return nil
}

func merkleTree(data []string, hasher signature.Hasher) (*merkle.Tree[database.Tx], error) {
	txs := make([]database.Tx, len(data))
	for i, d := range data {
		txs[i] = database.Tx{Data: d}
	}

	return merkle.NewTree(txs, merkle.WithHashStrategy[database.Tx](hasher.New))
}
