package state

import (
	"fmt"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
)

// SubmitWalletTransaction accepts a transaction from a wallet for inclusion.
// A signed transaction must carry a signature produced by its from account.
func (s *State) SubmitWalletTransaction(tx database.Tx) error {
	if tx.Signature != "" {
		if err := tx.VerifySignature(); err != nil {
			return fmt.Errorf("verifying signature: %w", err)
		}
	}

	if err := s.db.AddTransaction(tx); err != nil {
		return err
	}

	s.evHandler("state: SubmitWalletTransaction: tx[%s]", tx)

	if tpb := int(s.genesis.TransPerBlock); tpb > 0 && s.QueryPendingLength() >= tpb && s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}
