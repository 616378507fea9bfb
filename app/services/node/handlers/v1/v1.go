// Package v1 contains the full set of handler functions and routes
// supported by the v1 node API.
package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ardanlabs/dposchain/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/dposchain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/dposchain/business/core/chain"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/web"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	Chain *chain.Chain
	Store store.Store
}

// PublicRoutes binds all the version 1 client-facing routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		Chain: cfg.Chain,
		Store: cfg.Store,
	}

	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/accounts/:address", pbl.Account)
	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", pbl.BlocksByRange)
	app.Handle(http.MethodGet, version, "/delegates/top", pbl.TopDelegates)
	app.Handle(http.MethodGet, version, "/blocks/stream", pbl.BlockStream)
}

// PrivateRoutes binds all the version 1 node-to-node routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		Chain: cfg.Chain,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/tx/list", prv.Mempool)
	app.Handle(http.MethodPost, version, "/node/tx/submit", prv.SubmitNodeTransaction)
	app.Handle(http.MethodPost, version, "/node/block/propose", prv.ProposeBlock)
	app.Handle(http.MethodPost, version, "/node/block/common", prv.FindCommonBlock)
	app.Handle(http.MethodGet, version, "/node/block/list/:after/:limit", prv.BlocksAfter)
	app.Handle(http.MethodPost, version, "/node/peers", prv.SubmitPeer)
}
