// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ardanlabs/hashledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data is hashed by the tree using the raw bytes of the string.
type Data struct {
	x string
}

// Encode returns the bytes to be hashed.
func (d Data) Encode() ([]byte, error) {
	return []byte(d.x), nil
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func batch(n int) []Data {
	data := make([]Data, n)
	for i := range data {
		data[i] = Data{x: fmt.Sprintf("tx%d", i+1)}
	}
	return data
}

// =============================================================================

func Test_Root(t *testing.T) {
	type table struct {
		name string
		data []Data
		root string
	}

	tt := []table{
		{name: "empty", data: batch(0), root: signature.ZeroHash},
		{name: "one", data: batch(1), root: "709b55bd3da0f5a838125bd0ee20c5bfdd7caba173912d4281cae816b79a201b"},
		{name: "two", data: batch(2), root: "bbea820f07f7f89aeea1ab4a354ecea39f2f72accd05c64371522ee371cd0c48"},
		{name: "three", data: batch(3), root: "88f65ae747487b0d7756dd09f2ee1391506691e9644bcd632d7e1892e6d07ba9"},
		{name: "five", data: batch(5), root: "e005b5664946b94dcae30e856ab0058930eb5ec65ca113c90331454335612140"},
	}

	t.Log("Given the need to calculate a merkle root.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %d values.", testID, len(tst.data))
			{
				f := func(t *testing.T) {
					tree, err := merkle.NewTree(tst.data)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to build the tree.", success, testID)

					if tree.RootHex() != tst.root {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tree.RootHex())
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.root)
						t.Fatalf("\t%s\tTest %d:\tShould get back the right root.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right root.", success, testID)

					tree2, err := merkle.NewTree(tst.data)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build the tree again: %v", failed, testID, err)
					}
					if !bytes.Equal(tree.MerkleRoot, tree2.MerkleRoot) {
						t.Fatalf("\t%s\tTest %d:\tShould get the same root from an independent build.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the same root from an independent build.", success, testID)

					if err := tree.Rebuild(); err != nil || tree.RootHex() != tst.root {
						t.Fatalf("\t%s\tTest %d:\tShould get the same root after a rebuild: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get the same root after a rebuild.", success, testID)

					if err := tree.Verify(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to verify the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to verify the tree.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Height(t *testing.T) {
	heights := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 17: 5}

	t.Log("Given the need to build trees of the right height.")
	{
		for n, exp := range heights {
			tree, err := merkle.NewTree(batch(n))
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build a tree of %d values: %v", failed, n, err)
			}

			if tree.Height() != exp {
				t.Fatalf("\t%s\tShould have height %d for %d values, got %d.", failed, exp, n, tree.Height())
			}
			t.Logf("\t%s\tShould have height %d for %d values.", success, exp, n)
		}
	}
}

func Test_OrderSensitive(t *testing.T) {
	t.Log("Given the need for the root to depend on the order of the values.")
	{
		for n := 2; n <= 7; n++ {
			data := batch(n)
			swapped := batch(n)
			swapped[0], swapped[n-1] = swapped[n-1], swapped[0]

			t1, err := merkle.NewTree(data)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
			}

			t2, err := merkle.NewTree(swapped)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build the swapped tree: %v", failed, err)
			}

			if bytes.Equal(t1.MerkleRoot, t2.MerkleRoot) {
				t.Fatalf("\t%s\tShould get a different root when %d values are reordered.", failed, n)
			}
			t.Logf("\t%s\tShould get a different root when %d values are reordered.", success, n)
		}
	}
}

func Test_Proof(t *testing.T) {
	t.Log("Given the need to prove every value is in the tree.")
	{
		for n := 1; n <= 11; n++ {
			tree, err := merkle.NewTree(batch(n))
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
			}

			for i := 0; i < n; i++ {
				proof, err := tree.Proof(i)
				if err != nil {
					t.Fatalf("\t%s\tShould be able to get a proof for leaf %d of %d: %v", failed, i, n, err)
				}

				if err := tree.VerifyProof(i, proof); err != nil {
					t.Fatalf("\t%s\tShould be able to verify the proof for leaf %d of %d: %v", failed, i, n, err)
				}

				if err := merkle.VerifyProof(sha256.New, tree.MerkleRoot, tree.Levels[0][i], i, n, proof); err != nil {
					t.Fatalf("\t%s\tShould be able to verify the proof without the tree for leaf %d of %d: %v", failed, i, n, err)
				}
			}
			t.Logf("\t%s\tShould be able to verify every proof for %d values.", success, n)
		}
	}
}

func Test_ProofSelfPair(t *testing.T) {
	t.Log("Given the need to handle a node that is paired with itself.")
	{
		tree, err := merkle.NewTree(batch(5))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		// Leaf 4 is unpaired at levels 0 and 1 and only has a left
		// sibling at level 2.
		proof, err := tree.Proof(4)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to get the proof: %v", failed, err)
		}

		if len(proof) != 1 || proof[0].Side != merkle.Left {
			t.Fatalf("\t%s\tShould omit the steps where the leaf paired with itself: %v", failed, proof)
		}
		t.Logf("\t%s\tShould omit the steps where the leaf paired with itself.", success)

		if err := tree.VerifyProof(4, proof); err != nil {
			t.Fatalf("\t%s\tShould verify by hashing with itself at the omitted steps: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify by hashing with itself at the omitted steps.", success)

		if err := tree.VerifyProof(3, proof); err == nil {
			t.Fatalf("\t%s\tShould not verify a proof against the wrong index.", failed)
		}
		t.Logf("\t%s\tShould not verify a proof against the wrong index.", success)

		extra := append(proof, merkle.ProofStep{Side: merkle.Right, Hash: proof[0].Hash})
		if err := tree.VerifyProof(4, extra); err == nil {
			t.Fatalf("\t%s\tShould not verify a proof with unused steps.", failed)
		}
		t.Logf("\t%s\tShould not verify a proof with unused steps.", success)
	}
}

func Test_ProofMutation(t *testing.T) {
	t.Log("Given the need for a changed value to invalidate proofs.")
	{
		data := batch(6)
		tree, err := merkle.NewTree(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		proofs := make([][]merkle.ProofStep, len(data))
		for i := range data {
			if proofs[i], err = tree.Proof(i); err != nil {
				t.Fatalf("\t%s\tShould be able to get a proof: %v", failed, err)
			}
		}

		data[2] = Data{x: "tampered"}
		changed, err := merkle.NewTree(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the changed tree: %v", failed, err)
		}

		// Every path ends at the root, so every old proof now fails.
		for i := range data {
			err := merkle.VerifyProof(sha256.New, changed.MerkleRoot, tree.Levels[0][i], i, len(data), proofs[i])
			if err == nil {
				t.Fatalf("\t%s\tShould not verify the old proof for leaf %d.", failed, i)
			}
		}
		t.Logf("\t%s\tShould not verify any old proof against the changed root.", success)

		// Leafs whose sibling subtree contains leaf 2 carry a stale hash.
		for _, i := range []int{0, 1, 3, 4, 5} {
			err := merkle.VerifyProof(sha256.New, changed.MerkleRoot, changed.Levels[0][i], i, len(data), proofs[i])
			if err == nil {
				t.Fatalf("\t%s\tShould not verify leaf %d with a proof that touches the changed subtree.", failed, i)
			}
		}
		t.Logf("\t%s\tShould not verify any proof that touches the changed subtree.", success)

		if err := changed.VerifyData(Data{x: "tx3"}); err == nil {
			t.Fatalf("\t%s\tShould not find the replaced value.", failed)
		}
		if err := changed.VerifyData(Data{x: "tampered"}); err != nil {
			t.Fatalf("\t%s\tShould verify the new value: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify data by value.", success)
	}
}

func Test_HashStrategy(t *testing.T) {
	t.Log("Given the need to build a tree with a different hash strategy.")
	{
		tree, err := merkle.NewTree(batch(3), merkle.WithHashStrategy[Data](signature.Blake2b256.New))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		def, err := merkle.NewTree(batch(3))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the default tree: %v", failed, err)
		}

		if bytes.Equal(tree.MerkleRoot, def.MerkleRoot) {
			t.Fatalf("\t%s\tShould get a different root with a different strategy.", failed)
		}
		t.Logf("\t%s\tShould get a different root with a different strategy.", success)

		proof, _ := tree.Proof(2)
		if err := tree.VerifyProof(2, proof); err != nil {
			t.Fatalf("\t%s\tShould verify a proof with the tree's strategy: %v", failed, err)
		}
		if err := merkle.VerifyProof(sha256.New, tree.MerkleRoot, tree.Levels[0][2], 2, 3, proof); err == nil {
			t.Fatalf("\t%s\tShould not verify a proof with the wrong strategy.", failed)
		}
		t.Logf("\t%s\tShould only verify a proof with the tree's strategy.", success)
	}
}

func Test_ProofJSON(t *testing.T) {
	tree, err := merkle.NewTree(batch(3))
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("Should be able to get a proof: %v", err)
	}

	data, err := json.Marshal(proof)
	if err != nil {
		t.Fatalf("Should be able to marshal the proof: %v", err)
	}

	var got []merkle.ProofStep
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Should be able to unmarshal the proof: %v", err)
	}

	if err := tree.VerifyProof(1, got); err != nil {
		t.Fatalf("Should be able to verify the decoded proof: %v", err)
	}

	exp := fmt.Sprintf(`{"side":"left","hash":"0x%s"}`, hex.EncodeToString(tree.Levels[0][0]))
	if !bytes.Contains(data, []byte(exp)) {
		t.Logf("got: %s", data)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should encode the side and hash as text.")
	}
}
