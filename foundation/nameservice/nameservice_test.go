package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_NameService(t *testing.T) {
	t.Log("Given the need to name accounts from key files.")
	{
		t.Logf("\tTest 0:\tWhen the folder holds a key for kennedy.")
		{
			dir := t.TempDir()

			key, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate a key: %v", failed, err)
			}
			if err := crypto.SaveECDSA(filepath.Join(dir, "kennedy.ecdsa"), key); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to save the key: %v", failed, err)
			}

			ns, err := nameservice.New(dir)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load the folder: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to load the folder.", success)

			accountID := database.PublicKeyToAccountID(key.PublicKey)
			if name := ns.Lookup(accountID); name != "kennedy" {
				t.Fatalf("\t%s\tTest 0:\tShould name the account kennedy, got %q.", failed, name)
			}
			t.Logf("\t%s\tTest 0:\tShould name the account kennedy.", success)

			if name := ns.Lookup("miner"); name != "miner" {
				t.Fatalf("\t%s\tTest 0:\tShould return an unknown account as is, got %q.", failed, name)
			}
			t.Logf("\t%s\tTest 0:\tShould return an unknown account as is.", success)
		}

		t.Logf("\tTest 1:\tWhen the folder does not exist.")
		{
			ns, err := nameservice.New(filepath.Join(t.TempDir(), "missing"))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould get an empty name service: %v", failed, err)
			}
			if len(ns.Copy()) != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould get an empty name service.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould get an empty name service.", success)
		}
	}
}
