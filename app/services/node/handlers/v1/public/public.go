// Package public maintains the group of handlers for client-facing
// access: transaction submission and read queries over accounts, mempool,
// and committed blocks.
package public

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ardanlabs/dposchain/business/core/chain"
	"github.com/ardanlabs/dposchain/business/web/errs"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
	"github.com/ardanlabs/dposchain/foundation/web"
)

// Handlers manages the set of client-facing endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Chain *chain.Chain
	Store store.Store
	WS    websocket.Upgrader
}

// SubmitTransaction validates and admits a client's signed transaction.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx txtypes.Transaction
	if err := web.Decode(r, &tx); err != nil {
		return err
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "id", tx.ID, "type", tx.Type, "sender", tx.SenderID, "amount", tx.Amount)

	if err := h.Chain.SubmitTransaction(ctx, tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}{ID: tx.ID, Status: "pending"}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Account returns the stored account record for :address.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	account, err := h.Store.GetAccount(address)
	if err != nil {
		if err == store.ErrNotFound {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}
		return err
	}

	return web.Respond(ctx, w, account, http.StatusOK)
}

// Mempool returns the transactions currently pending in this node's pool.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Mempool(), http.StatusOK)
}

// BlocksByRange returns committed blocks with heights above :from and up
// to :to inclusive, up to a fixed page size.
func (h Handlers) BlocksByRange(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	const maxPage = 100

	from, err := strconv.ParseUint(web.Param(r, "from"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid from height: %w", err), http.StatusBadRequest)
	}

	to, err := strconv.ParseUint(web.Param(r, "to"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid to height: %w", err), http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(fmt.Errorf("from height %d greater than to height %d", from, to), http.StatusBadRequest)
	}

	blocks, err := h.Chain.BlocksByRange(from, to, maxPage)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockStream upgrades the connection to a websocket and pushes every
// block this node appends to its chain as it happens, until the client
// disconnects.
func (h Handlers) BlockStream(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	conn, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	blocks := make(chan chainstate.Block, 16)
	sub, err := h.Chain.SubscribeBlocks(func(b chainstate.Block) {
		select {
		case blocks <- b:
		default:
			h.Log.Infow("blockstream", "status", "client too slow, dropping block", "id", b.ID)
		}
	})
	if err != nil {
		return err
	}
	defer h.Chain.UnsubscribeBlocks(sub)

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case block := <-blocks:
			data, err := json.Marshal(block)
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// TopDelegates returns the highest-vote-weight registered delegates, the
// pool the active round's forging schedule is drawn from.
func (h Handlers) TopDelegates(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	const topN = 101

	delegates, err := h.Store.TopVotedDelegates(topN)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, delegates, http.StatusOK)
}
