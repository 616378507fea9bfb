// Package transport is the HTTP client side of node-to-node communication:
// it implements loader.Network (status/pool/common-block/blocks lookups
// driven against one chosen peer) and broadcaster.Sender (fire-and-forget
// delivery of one announcement to one peer), so loader and broadcaster stay
// free of any wire format.
//
// Grounded on state.NetRequestPeerStatus/NetRequestPeerMempool/
// NetRequestPeerBlocks/NetSendBlockToPeers and their shared send helper:
// same plain net/http.Client, same JSON-body-in/JSON-body-out convention,
// generalized from a single baseURL format string into per-call route
// construction so the four loader.Network calls and the two broadcaster
// routes ("postBlock", "postTransactions") can each target their own path.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/broadcaster"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/loader"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Client is the outbound HTTP transport used by a node to talk to its
// peers. It satisfies loader.Network directly, and Client.Send satisfies
// broadcaster.Sender.
type Client struct {
	httpClient *http.Client
}

// New constructs a Client with timeout as the per-request deadline.
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// commonBlockRequest/commonBlockResponse are the wire shapes for
// FindCommonBlock, which a chainstate.Block ID list doesn't cover on its
// own (the response also needs to say "none found").
type commonBlockRequest struct {
	IDs []string `json:"ids"`
}

type commonBlockResponse struct {
	ID string `json:"id,omitempty"`
}

type fetchBlocksResponse struct {
	Blocks []chainstate.Block `json:"blocks"`
}

// RequestPeerStatus asks p for its current module alias, broadhash,
// height, and known peers.
func (c *Client) RequestPeerStatus(ctx context.Context, p peer.Peer) (peer.Status, error) {
	var status peer.Status
	if err := c.send(ctx, http.MethodGet, p, "/v1/node/status", nil, &status); err != nil {
		return peer.Status{}, err
	}
	return status, nil
}

// RequestPeerPool asks p for the transactions sitting in its pool.
func (c *Client) RequestPeerPool(ctx context.Context, p peer.Peer) ([]txtypes.Transaction, error) {
	var txs []txtypes.Transaction
	if err := c.send(ctx, http.MethodGet, p, "/v1/node/tx/list", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// FindCommonBlock asks p which of ids (offered newest first) it also has,
// so Sync knows where this node's chain diverged from p's.
func (c *Client) FindCommonBlock(ctx context.Context, p peer.Peer, ids []string) (string, error) {
	var resp commonBlockResponse
	if err := c.send(ctx, http.MethodPost, p, "/v1/node/block/common", commonBlockRequest{IDs: ids}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// FetchBlocks asks p for up to limit blocks following afterID.
func (c *Client) FetchBlocks(ctx context.Context, p peer.Peer, afterID string, limit int) ([]loader.Block, error) {
	path := fmt.Sprintf("/v1/node/block/list/%s/%d", afterID, limit)

	var resp fetchBlocksResponse
	if err := c.send(ctx, http.MethodGet, p, path, nil, &resp); err != nil {
		return nil, err
	}

	blocks := make([]loader.Block, len(resp.Blocks))
	for i, b := range resp.Blocks {
		blocks[i] = loader.Block{ID: b.ID, Height: b.Height, Raw: b}
	}
	return blocks, nil
}

// Send delivers one broadcaster.Announcement to p, routing by a.API to the
// matching node endpoint. It satisfies broadcaster.Sender.
func (c *Client) Send(ctx context.Context, p peer.Peer, a broadcaster.Announcement) error {
	switch a.API {
	case "postBlock":
		return c.send(ctx, http.MethodPost, p, "/v1/node/block/propose", a.Data, nil)
	case "postTransactions":
		return c.send(ctx, http.MethodPost, p, "/v1/node/tx/submit", a.Data, nil)
	default:
		return fmt.Errorf("transport: unknown announcement api %q", a.API)
	}
}

// send is the shared request/response plumbing every call above drives:
// marshal dataSend if present, issue the request against p's host, and
// unmarshal into dataRecv unless the body is empty.
func (c *Client) send(ctx context.Context, method string, p peer.Peer, path string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	url := fmt.Sprintf("http://%s%s", p.Host, path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return errors.New(string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
