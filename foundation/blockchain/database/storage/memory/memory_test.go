package memory_test

import (
	"testing"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Memory(t *testing.T) {
	t.Log("Given the need to hold blocks in memory.")
	{
		t.Logf("\tTest 0:\tWhen writing three blocks.")
		{
			m := memory.New()
			for i := range uint64(3) {
				if err := m.Write(database.BlockData{Number: i}); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to write block %d: %v", failed, i, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to write blocks in order.", success)

			if err := m.Write(database.BlockData{Number: 7}); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould refuse a block out of order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse a block out of order.", success)

			var got []uint64
			iter := m.ForEach()
			for bd, err := iter.Next(); !iter.Done(); bd, err = iter.Next() {
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to iterate: %v", failed, err)
				}
				got = append(got, bd.Number)
			}

			if len(got) != 3 || got[0] != 0 || got[2] != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould iterate blocks 0 to 2, got %v.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould iterate blocks 0 to 2.", success)

			if err := m.Reset(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to reset: %v", failed, err)
			}

			iter = m.ForEach()
			iter.Next()
			if !iter.Done() {
				t.Fatalf("\t%s\tTest 0:\tShould have nothing after a reset.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould have nothing after a reset.", success)
		}
	}
}
