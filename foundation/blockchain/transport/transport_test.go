package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/broadcaster"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
	"github.com/ardanlabs/dposchain/foundation/blockchain/transport"
)

const (
	success = "✓"
	failed  = "✗"
)

func Test_RequestPeerStatusDecodesTheResponse(t *testing.T) {
	t.Log("Given a peer serving its status.")
	{
		want := peer.Status{ModuleAlias: "TEST", Broadhash: "abc", Height: 7}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/node/status" {
				t.Fatalf("\t%s\tShould request the status route, got %s.", failed, r.URL.Path)
			}
			json.NewEncoder(w).Encode(want)
		}))
		defer srv.Close()

		c := transport.New(time.Second)

		got, err := c.RequestPeerStatus(context.Background(), peer.New(srv.Listener.Addr().String()))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to request peer status: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to request peer status.", success)

		if got.ModuleAlias != want.ModuleAlias || got.Broadhash != want.Broadhash || got.Height != want.Height {
			t.Fatalf("\t%s\tShould decode the peer's advertised status, got %+v.", failed, got)
		}
		t.Logf("\t%s\tShould decode the peer's advertised status.", success)
	}
}

func Test_SendPostBlockRoutesToTheProposeEndpoint(t *testing.T) {
	t.Log("Given a broadcaster announcement for a block.")
	{
		hit := false

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/node/block/propose" {
				t.Fatalf("\t%s\tShould route to the block propose endpoint, got %s.", failed, r.URL.Path)
			}
			hit = true
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		c := transport.New(time.Second)

		a := broadcaster.Announcement{API: "postBlock", ID: "blk-1", Data: map[string]string{"id": "blk-1"}}
		if err := c.Send(context.Background(), peer.New(srv.Listener.Addr().String()), a); err != nil {
			t.Fatalf("\t%s\tShould be able to send the announcement: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to send the announcement.", success)

		if !hit {
			t.Fatalf("\t%s\tShould have reached the peer's handler.", failed)
		}
		t.Logf("\t%s\tShould have reached the peer's handler.", success)
	}
}

func Test_SendUnknownAPIFails(t *testing.T) {
	t.Log("Given a broadcaster announcement with an unrecognized api.")
	{
		c := transport.New(time.Second)

		a := broadcaster.Announcement{API: "postSomethingElse", ID: "x"}
		if err := c.Send(context.Background(), peer.New("127.0.0.1:0"), a); err == nil {
			t.Fatalf("\t%s\tShould reject an unrecognized announcement api.", failed)
		}
		t.Logf("\t%s\tShould reject an unrecognized announcement api.", success)
	}
}
