package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are no wallet transactions pending.
var ErrNoTransactions = errors.New("no transactions pending")

// =============================================================================

// MineNewBlock attempts to create a new block holding the pending wallet
// transactions. It is used by the mining worker, which has nothing to do
// when only a mining reward is pending.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check pending count")

	if s.QueryPendingLength() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	return s.MineBlock(ctx, s.beneficiary)
}

// MineBlock mines every pending transaction into a new block, whatever is
// pending, and pays the beneficiary in the block after it.
func (s *State) MineBlock(ctx context.Context, beneficiary database.AccountID) (database.Block, error) {
	if beneficiary == "" {
		beneficiary = s.beneficiary
	}

	s.evHandler("state: MineBlock: MINING: perform POW: beneficiary[%s]", beneficiary)

	block, err := s.db.MinePending(ctx, beneficiary)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineBlock: MINING: blk[%d]: hash[%s]", block.Header.Number, block.Hash)

	return block, nil
}
