package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/snapshot"
	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// exportChain mines a small chain and saves it as a snapshot file.
func exportChain(t *testing.T) string {
	t.Helper()

	g := genesis.Default()
	g.Difficulty = 1

	db, err := database.New(context.Background(), database.Config{
		Genesis:    g,
		Serializer: memory.New(),
		Workers:    2,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
	}
	defer db.Close()

	if err := db.AddTransaction(database.Tx{From: database.NetworkAccount, To: "X", Amount: 50}); err != nil {
		t.Fatalf("\t%s\tShould be able to add a transaction: %v", failed, err)
	}

	if _, err := db.MinePending(context.Background(), "miner"); err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	path := filepath.Join(t.TempDir(), "blockchain_data.json")
	if err := snapshot.Save(path, db.Snapshot()); err != nil {
		t.Fatalf("\t%s\tShould be able to save the snapshot: %v", failed, err)
	}

	return path
}

func Test_Validate(t *testing.T) {
	t.Log("Given the need to validate an exported snapshot.")
	{
		path := exportChain(t)

		v, err := Validate(path, signature.SHA256, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to validate the snapshot: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to validate the snapshot.", success)

		if !v.Valid {
			t.Fatalf("\t%s\tShould report the chain as valid: %+v", failed, v)
		}
		t.Logf("\t%s\tShould report the chain as valid.", success)

		if _, err := Validate(filepath.Join(t.TempDir(), "missing.json"), signature.SHA256, nil); err == nil {
			t.Fatalf("\t%s\tShould fail for a missing snapshot.", failed)
		}
		t.Logf("\t%s\tShould fail for a missing snapshot.", success)
	}
}

func Test_Tamper(t *testing.T) {
	t.Log("Given the need to show the effect of altering a block.")
	{
		path := exportChain(t)

		v, err := Tamper(path, signature.SHA256, 1, 999999, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to tamper with a copy: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to tamper with a copy.", success)

		if v.Valid || v.Number != 1 || v.Check != database.CheckSeal {
			t.Fatalf("\t%s\tShould fail the seal check at block 1: %+v", failed, v)
		}
		t.Logf("\t%s\tShould fail the seal check at block 1.", success)

		v, err = Validate(path, signature.SHA256, nil)
		if err != nil || !v.Valid {
			t.Fatalf("\t%s\tShould leave the snapshot on disk untouched: %+v %v", failed, v, err)
		}
		t.Logf("\t%s\tShould leave the snapshot on disk untouched.", success)

		if _, err := Tamper(path, signature.SHA256, 10, 1, nil); err == nil {
			t.Fatalf("\t%s\tShould fail for a block outside the chain.", failed)
		}
		t.Logf("\t%s\tShould fail for a block outside the chain.", success)
	}
}

func Test_Balances(t *testing.T) {
	t.Log("Given the need to replay the balances of a snapshot.")
	{
		snap, err := snapshot.Load(exportChain(t))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the snapshot: %v", failed, err)
		}

		exp := []database.AccountBalance{
			{AccountID: database.NetworkAccount, Balance: -50},
			{AccountID: "X", Balance: 50},
		}
		got := balances(snap)
		if len(got) != len(exp) || got[0] != exp[0] || got[1] != exp[1] {
			t.Logf("\t%s\tgot: %v", failed, got)
			t.Logf("\t%s\texp: %v", failed, exp)
			t.Fatalf("\t%s\tShould replay every transaction.", failed)
		}
		t.Logf("\t%s\tShould replay every transaction.", success)
	}
}

func Test_Merkle(t *testing.T) {
	t.Log("Given the need to build a merkle tree over transactions.")
	{
		data := []string{"a", "b", "c"}

		tree, err := merkleTree(data, signature.SHA256)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to build the tree.", success)

		if tree.Len() != 3 {
			t.Fatalf("\t%s\tShould hold 3 transactions: %d", failed, tree.Len())
		}
		t.Logf("\t%s\tShould hold 3 transactions.", success)

		if err := Merkle(data, 2, signature.SHA256); err != nil {
			t.Fatalf("\t%s\tShould prove the last transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould prove the last transaction.", success)

		if err := Merkle(data, 3, signature.SHA256); err == nil {
			t.Fatalf("\t%s\tShould fail to prove an index outside the tree.", failed)
		}
		t.Logf("\t%s\tShould fail to prove an index outside the tree.", success)
	}
}
