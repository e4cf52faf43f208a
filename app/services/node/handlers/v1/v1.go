// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/hashledger/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/hashledger/foundation/blockchain/state"
	"github.com/ardanlabs/hashledger/foundation/events"
	"github.com/ardanlabs/hashledger/foundation/nameservice"
	"github.com/ardanlabs/hashledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction)
	app.Handle(http.MethodGet, version, "/tx/pending", pbl.Pending)
	app.Handle(http.MethodGet, version, "/mining/signal", pbl.SignalMining)
	app.Handle(http.MethodPost, version, "/mining/mine", pbl.Mine)
	app.Handle(http.MethodGet, version, "/blocks/list", pbl.BlocksByAccount)
	app.Handle(http.MethodGet, version, "/blocks/list/:account", pbl.BlocksByAccount)
	app.Handle(http.MethodGet, version, "/blocks/:number", pbl.BlockByNumber)
	app.Handle(http.MethodGet, version, "/balances/list", pbl.Balances)
	app.Handle(http.MethodGet, version, "/balances/list/:account", pbl.Balances)
	app.Handle(http.MethodGet, version, "/chain/validate", pbl.Validate)
	app.Handle(http.MethodGet, version, "/chain/snapshot", pbl.Snapshot)
	app.Handle(http.MethodGet, version, "/proof/:number/:index", pbl.Proof)
}
