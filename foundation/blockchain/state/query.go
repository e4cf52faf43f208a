package state

import (
	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrievePending returns a copy of the transactions waiting to be mined.
func (s *State) RetrievePending() []database.Tx {
	return s.db.Pending()
}

// RetrieveBalances returns the balance of every account on the chain.
func (s *State) RetrieveBalances() []database.AccountBalance {
	return s.db.Balances()
}

// RetrieveSnapshot returns the chain in its persisted form.
func (s *State) RetrieveSnapshot() database.Snapshot {
	return s.db.Snapshot()
}

// QueryPendingLength returns the number of pending wallet transactions.
// Mining rewards waiting for the next block are not counted.
func (s *State) QueryPendingLength() int {
	var n int
	for _, tx := range s.db.Pending() {
		if tx.Type != database.TypeMiningReward {
			n++
		}
	}
	return n
}

// QueryBalance returns the balance of the specified account.
func (s *State) QueryBalance(accountID database.AccountID) database.AccountBalance {
	return database.AccountBalance{
		AccountID: accountID,
		Balance:   s.db.BalanceOf(accountID),
	}
}

// QueryBlocksByAccount returns the set of blocks with transactions for the
// specified account. An empty account returns every block.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) []database.Block {
	return s.db.QueryBlocksByAccount(accountID)
}

// QueryBlockByNumber returns the block at the specified position.
func (s *State) QueryBlockByNumber(num uint64) (database.Block, error) {
	return s.db.GetBlock(num)
}

// QueryProof returns the merkle proof for a transaction in a block.
func (s *State) QueryProof(num uint64, index int) (database.TxProof, error) {
	return s.db.Proof(num, index)
}

// ValidateChain re-derives every seal in the chain.
func (s *State) ValidateChain() database.Validation {
	return s.db.Validate()
}
