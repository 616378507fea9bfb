// Package private maintains the group of handlers for node to node
// access: status exchange, mempool relay, and block propose/fetch/common
// for the sync and broadcast loops.
package private

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ardanlabs/dposchain/business/core/chain"
	"github.com/ardanlabs/dposchain/business/web/errs"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
	"github.com/ardanlabs/dposchain/foundation/web"
)

// Handlers manages the set of node-to-node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Chain *chain.Chain
}

// Status returns this node's current module alias, broadhash, height, and
// known peers.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Status(), http.StatusOK)
}

// Mempool returns the set of ready-to-forge transactions a peer offers
// when asked for its pool.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Mempool(), http.StatusOK)
}

// SubmitNodeTransaction relays a transaction a peer is broadcasting into
// this node's pool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx txtypes.Transaction
	if err := web.Decode(r, &tx); err != nil {
		return err
	}

	h.Log.Infow("relay tx", "traceid", v.TraceID, "id", tx.ID, "sender", tx.SenderID)

	if err := h.Chain.SubmitTransaction(ctx, tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{Status: "accepted"}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ProposeBlock takes a block forged or relayed by a peer, runs it through
// the normal append pipeline, and reports whether it was accepted.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var block chainstate.Block
	if err := web.Decode(r, &block); err != nil {
		return err
	}

	if err := h.Chain.ReceiveBlock(ctx, block); err != nil {
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	resp := struct {
		Status string `json:"status"`
	}{Status: "accepted"}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// commonBlockRequest/commonBlockResponse mirror transport.Client's wire
// shapes for the common-block search.
type commonBlockRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

type commonBlockResponse struct {
	ID string `json:"id,omitempty"`
}

// FindCommonBlock reports which of the request's ids this node also has,
// so a syncing peer knows where its chain diverged from ours.
func (h Handlers) FindCommonBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req commonBlockRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	id, err := h.Chain.FindCommonBlock(req.IDs)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, commonBlockResponse{ID: id}, http.StatusOK)
}

type fetchBlocksResponse struct {
	Blocks []chainstate.Block `json:"blocks"`
}

// BlocksAfter returns up to :limit full blocks following :after, for a
// peer replaying them onto its own chain.
func (h Handlers) BlocksAfter(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	after := web.Param(r, "after")

	limit, err := strconv.Atoi(web.Param(r, "limit"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid limit: %w", err), http.StatusBadRequest)
	}

	blocks, err := h.Chain.BlocksAfter(after, limit)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, fetchBlocksResponse{Blocks: blocks}, http.StatusOK)
}

// SubmitPeer registers a peer this node has been told about as known.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var p peer.Peer
	if err := web.Decode(r, &p); err != nil {
		return err
	}

	added := h.Chain.AddKnownPeer(p)

	resp := struct {
		Added bool `json:"added"`
	}{Added: added}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
