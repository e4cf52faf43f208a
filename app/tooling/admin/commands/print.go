package commands

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
	"github.com/pterm/pterm"
)

// Print renders the blocks of the snapshot and the balances they produce.
func Print(path string, hasher signature.Hasher) error {
	snap, _, err := load(path, hasher)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Chain: %d blocks at difficulty %d", len(snap.Chain), snap.Difficulty)

	blockTable := pterm.TableData{
		{"Index", "Timestamp", "Nonce", "Trans", "Previous", "Hash"},
	}
	for _, b := range snap.Chain {
		blockTable = append(blockTable, []string{
			fmt.Sprint(b.Number),
			fmt.Sprintf("%.6f", b.TimeStamp),
			fmt.Sprint(b.Nonce),
			fmt.Sprint(len(b.Trans)),
			short(b.PrevBlockHash),
			short(b.Hash),
		})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(blockTable).Render(); err != nil {
		return err
	}

	pterm.DefaultSection.Println("Balances")

	balTable := pterm.TableData{
		{"Account", "Balance"},
	}
	for _, bal := range balances(snap) {
		balTable = append(balTable, []string{string(bal.AccountID), fmt.Sprint(bal.Balance)})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(balTable).Render()
}

// balances replays every transaction in the snapshot.
func balances(snap database.Snapshot) []database.AccountBalance {
	m := make(map[database.AccountID]int64)
	for _, b := range snap.Chain {
		for _, tx := range b.Trans {
			if tx.From != "" {
				m[tx.From] -= tx.Amount
			}
			if tx.To != "" {
				m[tx.To] += tx.Amount
			}
		}
	}

	bals := make([]database.AccountBalance, 0, len(m))
	for act, bal := range m {
		bals = append(bals, database.AccountBalance{AccountID: act, Balance: bal})
	}
	sort.Slice(bals, func(i, j int) bool { return bals[i].AccountID < bals[j].AccountID })

	return bals
}

func short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
