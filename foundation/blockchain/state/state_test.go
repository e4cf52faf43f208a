package state_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/hashledger/foundation/blockchain/state"
	"github.com/ardanlabs/hashledger/foundation/blockchain/worker"
	"github.com/ardanlabs/hashledger/foundation/events"
	"github.com/ardanlabs/hashledger/foundation/logger"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	senderECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	minerECDSA  = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	toAccount   = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newState(t *testing.T, transPerBlock uint16) (*state.State, *events.Events) {
	t.Helper()

	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	t.Cleanup(func() { log.Sync() })

	key, err := crypto.HexToECDSA(minerECDSA)
	ifErrFailNow(t, err)

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	g := genesis.Default()
	g.Difficulty = 1
	g.TransPerBlock = transPerBlock

	st, err := state.New(context.Background(), state.Config{
		Beneficiary: database.PublicKeyToAccountID(key.PublicKey),
		Genesis:     g,
		Serializer:  memory.New(),
		Workers:     2,
		EvHandler:   ev,
	})
	ifErrFailNow(t, err)

	return st, evts
}

func signedTx(t *testing.T, amount int64) database.Tx {
	t.Helper()

	key, err := crypto.HexToECDSA(senderECDSA)
	ifErrFailNow(t, err)

	tx, err := database.Tx{To: toAccount, Amount: amount, TimeStamp: database.Now()}.Sign(key)
	ifErrFailNow(t, err)

	return tx
}

// =============================================================================

func Test_SubmitWalletTransaction(t *testing.T) {
	t.Log("Given the need to accept wallet transactions.")
	{
		st, _ := newState(t, 0)

		t.Logf("\tTest 0:\tWhen the transaction is signed by its sender.")
		{
			if err := st.SubmitWalletTransaction(signedTx(t, 10)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the transaction: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the transaction.", success)
		}

		t.Logf("\tTest 1:\tWhen the transaction was changed after signing.")
		{
			tx := signedTx(t, 10)
			tx.Amount = 999999

			if err := st.SubmitWalletTransaction(tx); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the transaction.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the transaction.", success)
		}

		t.Logf("\tTest 2:\tWhen the transaction is not signed.")
		{
			if err := st.SubmitWalletTransaction(database.Tx{From: "Alice", To: "Bob", Amount: 1}); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould accept the transaction: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould accept the transaction.", success)

			if n := st.QueryPendingLength(); n != 2 {
				t.Fatalf("\t%s\tTest 2:\tShould have two pending transactions, got %d.", failed, n)
			}
			t.Logf("\t%s\tTest 2:\tShould have two pending transactions.", success)
		}
	}
}

func Test_MineNewBlock(t *testing.T) {
	t.Log("Given the need to mine pending transactions.")
	{
		st, _ := newState(t, 0)

		t.Logf("\tTest 0:\tWhen nothing is pending.")
		{
			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
				t.Fatalf("\t%s\tTest 0:\tShould get a no transactions error, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get a no transactions error.", success)
		}

		t.Logf("\tTest 1:\tWhen a transaction is pending.")
		{
			ifErrFailNow(t, st.SubmitWalletTransaction(signedTx(t, 10)))

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to mine the block.", success)

			if block.Header.Number != 1 || block.Trans.Len() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould mine block 1 with one transaction: blk[%d] trans[%d]", failed, block.Header.Number, block.Trans.Len())
			}
			t.Logf("\t%s\tTest 1:\tShould mine block 1 with one transaction.", success)

			if n := st.QueryPendingLength(); n != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould not count the pending reward, got %d.", failed, n)
			}
			t.Logf("\t%s\tTest 1:\tShould not count the pending reward.", success)

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
				t.Fatalf("\t%s\tTest 1:\tShould not mine a block for the reward alone, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould not mine a block for the reward alone.", success)
		}

		t.Logf("\tTest 2:\tWhen a block is mined on request.")
		{
			block, err := st.MineBlock(context.Background(), "")
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to mine the block: %v", failed, err)
			}

			trans := block.Trans.Values()
			if len(trans) != 1 || trans[0].To != st.Beneficiary() {
				t.Fatalf("\t%s\tTest 2:\tShould pay the node beneficiary: %v", failed, trans)
			}
			t.Logf("\t%s\tTest 2:\tShould pay the node beneficiary.", success)

			if v := st.ValidateChain(); !v.Valid {
				t.Fatalf("\t%s\tTest 2:\tShould validate the chain: %v", failed, v.Err)
			}
			t.Logf("\t%s\tTest 2:\tShould validate the chain.", success)
		}
	}
}

func Test_MiningWorker(t *testing.T) {
	t.Log("Given the need to mine in the background.")
	{
		t.Logf("\tTest 0:\tWhen enough transactions are pending.")
		{
			st, _ := newState(t, 2)
			worker.Run(st, nil)
			defer st.Shutdown()

			ifErrFailNow(t, st.SubmitWalletTransaction(signedTx(t, 10)))
			ifErrFailNow(t, st.SubmitWalletTransaction(signedTx(t, 20)))

			deadline := time.Now().Add(10 * time.Second)
			for st.RetrieveLatestBlock().Header.Number == 0 {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest 0:\tShould mine a block in the background.", failed)
				}
				time.Sleep(10 * time.Millisecond)
			}
			t.Logf("\t%s\tTest 0:\tShould mine a block in the background.", success)

			if b := st.QueryBalance(toAccount); b.Balance != 30 {
				t.Fatalf("\t%s\tTest 0:\tShould credit the receiver with 30, got %d.", failed, b.Balance)
			}
			t.Logf("\t%s\tTest 0:\tShould credit the receiver with 30.", success)
		}
	}
}
