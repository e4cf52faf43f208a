package public

import (
	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/nameservice"
)

// newTx is what a wallet submits. A signed transaction is verified against
// its from account before it is accepted.
type newTx struct {
	Amount    int64              `json:"amount" validate:"gte=0"`
	Data      any                `json:"data"`
	From      database.AccountID `json:"from"`
	Signature string             `json:"signature" validate:"omitempty,startswith=0x"`
	TimeStamp float64            `json:"timestamp"`
	To        database.AccountID `json:"to" validate:"required"`
	Type      string             `json:"type"`
}

func (ntx newTx) toDatabaseTx() database.Tx {
	return database.Tx{
		Amount:    ntx.Amount,
		Data:      ntx.Data,
		From:      ntx.From,
		Signature: ntx.Signature,
		TimeStamp: ntx.TimeStamp,
		To:        ntx.To,
		Type:      ntx.Type,
	}
}

type tx struct {
	From      database.AccountID `json:"from,omitempty"`
	FromName  string             `json:"from_name,omitempty"`
	To        database.AccountID `json:"to,omitempty"`
	ToName    string             `json:"to_name,omitempty"`
	Amount    int64              `json:"amount"`
	Data      any                `json:"data,omitempty"`
	TimeStamp float64            `json:"timestamp,omitempty"`
	Type      string             `json:"type,omitempty"`
	Signature string             `json:"signature,omitempty"`
}

func toTx(ns *nameservice.NameService, dbTx database.Tx) tx {
	t := tx{
		From:      dbTx.From,
		To:        dbTx.To,
		Amount:    dbTx.Amount,
		Data:      dbTx.Data,
		TimeStamp: dbTx.TimeStamp,
		Type:      dbTx.Type,
		Signature: dbTx.Signature,
	}

	if dbTx.From != "" {
		t.FromName = ns.Lookup(dbTx.From)
	}
	if dbTx.To != "" {
		t.ToName = ns.Lookup(dbTx.To)
	}

	return t
}

func toTxs(ns *nameservice.NameService, dbTxs []database.Tx) []tx {
	txs := make([]tx, len(dbTxs))
	for i, dbTx := range dbTxs {
		txs[i] = toTx(ns, dbTx)
	}
	return txs
}

type block struct {
	Number        uint64  `json:"index"`
	TimeStamp     float64 `json:"timestamp"`
	PrevBlockHash string  `json:"previous_hash"`
	TransRoot     string  `json:"merkle_root"`
	Nonce         uint64  `json:"nonce"`
	Hash          string  `json:"hash"`
	Transactions  []tx    `json:"transactions"`
}

func toBlock(ns *nameservice.NameService, dbBlock database.Block) block {
	return block{
		Number:        dbBlock.Header.Number,
		TimeStamp:     dbBlock.Header.TimeStamp,
		PrevBlockHash: dbBlock.Header.PrevBlockHash,
		TransRoot:     dbBlock.Header.TransRoot,
		Nonce:         dbBlock.Header.Nonce,
		Hash:          dbBlock.Hash,
		Transactions:  toTxs(ns, dbBlock.Trans.Values()),
	}
}

type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance int64              `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latest_block"`
	Pending     int       `json:"pending"`
	Balances    []balance `json:"balances"`
}
