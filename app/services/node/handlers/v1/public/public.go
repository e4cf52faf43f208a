// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/hashledger/business/sys/validate"
	"github.com/ardanlabs/hashledger/business/web/errs"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/state"
	"github.com/ardanlabs/hashledger/foundation/events"
	"github.com/ardanlabs/hashledger/foundation/nameservice"
	"github.com/ardanlabs/hashledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// SubmitWalletTransaction adds a new wallet transaction to the pending set.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ntx newTx
	if err := web.Decode(r, &ntx); err != nil {
		return errs.BadRequest(err)
	}

	if err := validate.Check(ntx); err != nil {
		return err
	}

	tx := ntx.toDatabaseTx()

	h.Log.Infow("add wallet tran", "traceid", web.GetTraceID(ctx), "from", tx.From, "to", tx.To, "amount", tx.Amount, "signed", tx.Signature != "")
	if err := h.State.SubmitWalletTransaction(tx); err != nil {
		return errs.BadRequest(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to pending",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Pending returns the set of transactions waiting to be mined.
func (h Handlers) Pending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pending := h.State.RetrievePending()
	return web.Respond(ctx, w, toTxs(h.NS, pending), http.StatusOK)
}

// SignalMining signals to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("mining worker is not running"), http.StatusServiceUnavailable)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mine mines every pending transaction into a new block and waits for it.
// The beneficiary query parameter overrides the account of the node.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	beneficiary := database.AccountID(r.URL.Query().Get("beneficiary"))

	blk, err := h.State.MineBlock(ctx, beneficiary)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrChainChanged):
			return errs.NewTrusted(err, http.StatusConflict)
		case ctx.Err() != nil:
			return errs.NewTrusted(err, http.StatusRequestTimeout)
		}
		return fmt.Errorf("mining block: %w", err)
	}

	return web.Respond(ctx, w, toBlock(h.NS, blk), http.StatusOK)
}

// BlocksByAccount returns all the blocks and their details.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := database.AccountID(web.Param(r, "account"))

	dbBlocks := h.State.QueryBlocksByAccount(accountID)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, dbBlock := range dbBlocks {
		blocks[i] = toBlock(h.NS, dbBlock)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByNumber returns the block at the specified position.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.BadRequest(fmt.Errorf("invalid block number: %w", err))
	}

	dbBlock, err := h.State.QueryBlockByNumber(num)
	if err != nil {
		return errs.NotFound(err)
	}

	return web.Respond(ctx, w, toBlock(h.NS, dbBlock), http.StatusOK)
}

// Balances returns the current balances for all accounts or the specified
// account.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := database.AccountID(web.Param(r, "account"))

	var dbBalances []database.AccountBalance
	switch accountID {
	case "":
		dbBalances = h.State.RetrieveBalances()
	default:
		dbBalances = []database.AccountBalance{h.State.QueryBalance(accountID)}
	}

	bals := make([]balance, len(dbBalances))
	for i, dbBalance := range dbBalances {
		bals[i] = balance{
			Account: dbBalance.AccountID,
			Name:    h.NS.Lookup(dbBalance.AccountID),
			Balance: dbBalance.Balance,
		}
	}

	resp := balances{
		LatestBlock: h.State.RetrieveLatestBlock().Hash,
		Pending:     len(h.State.RetrievePending()),
		Balances:    bals,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Validate re-derives every seal in the chain and reports the first failure.
func (h Handlers) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := h.State.ValidateChain()
	return web.Respond(ctx, w, v, http.StatusOK)
}

// Snapshot exports the chain in its persisted form.
func (h Handlers) Snapshot(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snap := h.State.RetrieveSnapshot()
	return web.Respond(ctx, w, snap, http.StatusOK)
}

// Proof returns the merkle proof for a transaction in a block.
func (h Handlers) Proof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.BadRequest(fmt.Errorf("invalid block number: %w", err))
	}

	index, err := strconv.Atoi(web.Param(r, "index"))
	if err != nil {
		return errs.BadRequest(fmt.Errorf("invalid transaction index: %w", err))
	}

	txp, err := h.State.QueryProof(num, index)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NotFound(err)
		}
		return err
	}

	return web.Respond(ctx, w, txp, http.StatusOK)
}
