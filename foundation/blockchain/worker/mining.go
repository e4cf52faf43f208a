package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation seals the pending transactions into a new block. A
// block requested through the api can land first, in which case the sealed
// block is discarded and the leftovers are picked up by the next signal.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// A pending mining reward on its own is not worth a block.
	if length := w.state.QueryPendingLength(); length == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no wallet transactions to mine: pending[%d]", len(w.state.RetrievePending()))
		return
	}

	// Transactions that arrived while sealing may already fill a block.
	defer func() {
		length := w.state.QueryPendingLength()
		if tpb := int(w.state.RetrieveGenesis().TransPerBlock); tpb > 0 && length >= tpb {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: pending[%d]", length)
			w.SignalStartMining()
		}
	}()

	// If mining is signalled to be cancelled, this G can't terminate until
	// it is told it can.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
		}
	}()

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case wait = <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		block, err := w.state.MineNewBlock(ctx)
		duration := time.Since(t)

		w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

		if err != nil {
			switch {
			case errors.Is(err, state.ErrNoTransactions):
				w.evHandler("worker: runMiningOperation: MINING: WARNING: no transactions pending")
			case errors.Is(err, database.ErrChainChanged):
				w.evHandler("worker: runMiningOperation: MINING: LOST: chain advanced while sealing")
			case ctx.Err() != nil:
				w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
			default:
				w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			}
			return
		}

		w.evHandler("worker: runMiningOperation: MINING: SOLVED: blk[%d]: nonce[%d]: trans[%d]: hash[%s]", block.Header.Number, block.Header.Nonce, block.Trans.Len(), block.Hash)
	}()

	// Wait for both G's to terminate.
	wg.Wait()
}
