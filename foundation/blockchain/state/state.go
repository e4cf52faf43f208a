// Package state is the core API for the ledger node. It wraps the chain with
// the rules for accepting wallet transactions and deciding when to mine.
package state

import (
	"context"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start
// the ledger node.
type Config struct {
	Beneficiary database.AccountID
	Genesis     genesis.Genesis
	Serializer  database.Serializer
	Workers     int
	EvHandler   EventHandler
}

// State manages the ledger database.
type State struct {
	beneficiary database.AccountID
	evHandler   EventHandler

	genesis genesis.Genesis
	db      *database.Database

	Worker Worker
}

// New constructs the node state, opening the chain held by the serializer.
func New(ctx context.Context, cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the chain, sealing the genesis block if storage is empty.
	db, err := database.New(ctx, database.Config{
		Genesis:    cfg.Genesis,
		Serializer: cfg.Serializer,
		Workers:    cfg.Workers,
		EvHandler:  ev,
	})
	if err != nil {
		return nil, err
	}

	state := State{
		beneficiary: cfg.Beneficiary,
		evHandler:   ev,
		genesis:     cfg.Genesis,
		db:          db,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the storage is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all mining activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// Beneficiary returns the account paid for the blocks this node mines.
func (s *State) Beneficiary() database.AccountID {
	return s.beneficiary
}
