package database

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/hashledger/foundation/blockchain/signature"
)

// ErrSealingExhausted is returned when every nonce available to the workers
// has been tried without solving the puzzle.
var ErrSealingExhausted = errors.New("nonce space exhausted")

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	BlockArgs
	Difficulty uint
	Workers    int    // Number of goroutines sharing the nonce space, minimum 1.
	StartNonce uint64 // First nonce tried by worker 0.
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The nonce space is split between the
// workers, worker i tries StartNonce+i and then every Workers'th nonce after
// that. The first worker to find a solution stops the others. With a single
// worker the result is the smallest solving nonce at or above StartNonce.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := func(v string, a ...any) {
		if args.EvHandler != nil {
			args.EvHandler(v, a...)
		}
	}

	hasher := args.Hasher
	if hasher.New == nil {
		hasher = signature.SHA256
	}
	args.Hasher = hasher

	nb, err := NewBlock(args.BlockArgs)
	if err != nil {
		return Block{}, err
	}

	s, err := newSealer(nb, hasher)
	if err != nil {
		return Block{}, err
	}

	workers := args.Workers
	if workers < 1 {
		workers = 1
	}

	ev("database: POW: MINING: started: blk[%d]: difficulty[%d]: workers[%d]: trans[%d]", nb.Header.Number, args.Difficulty, workers, nb.Trans.Len())

	type solution struct {
		nonce uint64
		hash  string
	}

	solved := make(chan solution, 1)
	var attempts atomic.Uint64

	// Create a context so the remaining workers stop once one solves it.
	mineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := range workers {
		go func(offset uint64) {
			defer wg.Done()

			if args.StartNonce > math.MaxUint64-offset {
				return
			}
			nonce := args.StartNonce + offset
			stride := uint64(workers)
			ws := s.clone(hasher)

			for {
				if mineCtx.Err() != nil {
					return
				}

				if n := attempts.Add(1); n%1_000_000 == 0 {
					ev("database: POW: MINING: attempts[%d]", n)
				}

				hash := ws.seal(nonce)
				if isHashSolved(args.Difficulty, hash) {
					select {
					case solved <- solution{nonce: nonce, hash: hash}:
						cancel()
					default:
					}
					return
				}

				// Stop rather than wrap around to nonces already tried.
				if nonce > math.MaxUint64-stride {
					return
				}
				nonce += stride
			}
		}(uint64(i))
	}

	wg.Wait()

	select {
	case sol := <-solved:
		nb.Header.Nonce = sol.nonce
		nb.Hash = sol.hash

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", nb.Header.PrevBlockHash, nb.Hash, nb.Header.Nonce)
		ev("database: POW: MINING: attempts[%d]", attempts.Load())
		return nb, nil

	default:
	}

	if err := ctx.Err(); err != nil {
		ev("database: POW: MINING: CANCELLED: blk[%d]: attempts[%d]", nb.Header.Number, attempts.Load())
		return Block{}, err
	}

	ev("database: POW: MINING: EXHAUSTED: blk[%d]: attempts[%d]", nb.Header.Number, attempts.Load())
	return Block{}, ErrSealingExhausted
}

// isHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if len(hash) != len(signature.ZeroHash) {
		return false
	}

	if difficulty > uint(len(hash)) {
		return false
	}

	return hash[:difficulty] == signature.ZeroHash[:difficulty]
}
