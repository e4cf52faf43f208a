package handlers_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/hashledger/app/services/node/handlers"
	"github.com/ardanlabs/hashledger/business/web/errs"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/hashledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
	"github.com/ardanlabs/hashledger/foundation/blockchain/state"
	"github.com/ardanlabs/hashledger/foundation/events"
	"github.com/ardanlabs/hashledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	senderECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	toAccount   = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
)

func newMux(t *testing.T) http.Handler {
	t.Helper()

	g := genesis.Default()
	g.Difficulty = 1

	st, err := state.New(context.Background(), state.Config{
		Beneficiary: "miner",
		Genesis:     g,
		Serializer:  memory.New(),
		Workers:     2,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the name service: %v", failed, err)
	}

	return handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		NS:       ns,
		Evts:     events.New(),
	})
}

func call(t *testing.T, mux http.Handler, method string, path string, body any, resp any) int {
	t.Helper()

	var b bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&b).Encode(body); err != nil {
			t.Fatalf("\t%s\tShould be able to encode the body: %v", failed, err)
		}
	}

	r := httptest.NewRequest(method, path, &b)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	if resp != nil && w.Code != http.StatusNoContent {
		if err := json.NewDecoder(w.Body).Decode(resp); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the response of %s: %v", failed, path, err)
		}
	}

	return w.Code
}

// =============================================================================

func Test_Routes(t *testing.T) {
	mux := newMux(t)

	t.Log("Given the need to drive the ledger through the web api.")
	{
		t.Logf("\tTest 0:\tWhen submitting a signed transaction.")
		{
			key, err := crypto.HexToECDSA(senderECDSA)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load the key: %v", failed, err)
			}

			tx, err := database.Tx{To: toAccount, Amount: 50, Data: map[string]any{"memo": "rent"}, TimeStamp: database.Now()}.Sign(key)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign: %v", failed, err)
			}

			if code := call(t, mux, http.MethodPost, "/v1/tx/submit", tx, nil); code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould accept the transaction, got %d.", failed, code)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the transaction.", success)

			tx.Amount = 999999
			var er errs.Response
			if code := call(t, mux, http.MethodPost, "/v1/tx/submit", tx, &er); code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 0:\tShould reject a changed transaction, got %d.", failed, code)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a changed transaction: %s", success, er.Error)
		}

		t.Logf("\tTest 1:\tWhen submitting an invalid transaction.")
		{
			var er errs.Response
			code := call(t, mux, http.MethodPost, "/v1/tx/submit", map[string]any{"amount": -5}, &er)
			if code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould get a bad request, got %d.", failed, code)
			}
			if _, exists := er.Fields["to"]; !exists {
				t.Fatalf("\t%s\tTest 1:\tShould report the missing to field: %v", failed, er.Fields)
			}
			t.Logf("\t%s\tTest 1:\tShould report the invalid fields.", success)
		}

		t.Logf("\tTest 2:\tWhen mining the pending transaction.")
		{
			var blk struct {
				Number       uint64 `json:"index"`
				Hash         string `json:"hash"`
				Transactions []any  `json:"transactions"`
			}
			if code := call(t, mux, http.MethodPost, "/v1/mining/mine?beneficiary=kennedy", nil, &blk); code != http.StatusOK {
				t.Fatalf("\t%s\tTest 2:\tShould mine the block, got %d.", failed, code)
			}
			if blk.Number != 1 || len(blk.Transactions) != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould mine block 1 with one transaction: %+v", failed, blk)
			}
			t.Logf("\t%s\tTest 2:\tShould mine block 1 with one transaction.", success)

			var pending []map[string]any
			call(t, mux, http.MethodGet, "/v1/tx/pending", nil, &pending)
			if len(pending) != 1 || pending[0]["to"] != "kennedy" {
				t.Fatalf("\t%s\tTest 2:\tShould leave the reward for kennedy pending: %v", failed, pending)
			}
			t.Logf("\t%s\tTest 2:\tShould leave the reward for kennedy pending.", success)
		}

		t.Logf("\tTest 3:\tWhen querying balances.")
		{
			var resp struct {
				Balances []struct {
					Account string `json:"account"`
					Balance int64  `json:"balance"`
				} `json:"balances"`
			}
			if code := call(t, mux, http.MethodGet, "/v1/balances/list/"+toAccount, nil, &resp); code != http.StatusOK {
				t.Fatalf("\t%s\tTest 3:\tShould get the balance, got %d.", failed, code)
			}
			if len(resp.Balances) != 1 || resp.Balances[0].Balance != 50 {
				t.Fatalf("\t%s\tTest 3:\tShould get a balance of 50: %+v", failed, resp.Balances)
			}
			t.Logf("\t%s\tTest 3:\tShould get a balance of 50.", success)
		}

		t.Logf("\tTest 4:\tWhen validating the chain.")
		{
			var v struct {
				Valid bool `json:"valid"`
			}
			if code := call(t, mux, http.MethodGet, "/v1/chain/validate", nil, &v); code != http.StatusOK || !v.Valid {
				t.Fatalf("\t%s\tTest 4:\tShould report a valid chain: code[%d] valid[%v]", failed, code, v.Valid)
			}
			t.Logf("\t%s\tTest 4:\tShould report a valid chain.", success)
		}

		t.Logf("\tTest 5:\tWhen asking for a transaction proof.")
		{
			var txp database.TxProof
			if code := call(t, mux, http.MethodGet, "/v1/proof/1/0", nil, &txp); code != http.StatusOK {
				t.Fatalf("\t%s\tTest 5:\tShould get the proof, got %d.", failed, code)
			}

			root, _ := hex.DecodeString(txp.Root)
			leaf, _ := hex.DecodeString(txp.Leaf)
			if err := merkle.VerifyProof(signature.SHA256.New, root, leaf, txp.Index, txp.Count, txp.Proof); err != nil {
				t.Fatalf("\t%s\tTest 5:\tShould verify the proof: %v", failed, err)
			}
			t.Logf("\t%s\tTest 5:\tShould verify the proof.", success)
		}

		t.Logf("\tTest 6:\tWhen asking for blocks that don't exist.")
		{
			if code := call(t, mux, http.MethodGet, "/v1/blocks/9", nil, nil); code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest 6:\tShould get not found, got %d.", failed, code)
			}
			if code := call(t, mux, http.MethodGet, "/v1/blocks/list/nobody", nil, nil); code != http.StatusNoContent {
				t.Fatalf("\t%s\tTest 6:\tShould get no content, got %d.", failed, code)
			}
			t.Logf("\t%s\tTest 6:\tShould get not found and no content.", success)
		}
	}
}
