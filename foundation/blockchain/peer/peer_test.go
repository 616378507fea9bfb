package peer_test

import (
	"testing"

	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host2"}, {Host: "host3"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewSet()

			for _, p := range tst.peers {
				ps.Add(p)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_CalculateConsensus(t *testing.T) {
	ps := peer.NewSet()
	alias := "sidechain"
	broadhash := "abc123"

	hosts := []peer.Peer{{Host: "h1"}, {Host: "h2"}, {Host: "h3"}, {Host: "h4"}}
	for _, h := range hosts {
		ps.Add(h)
	}

	ps.UpdateStatus(hosts[0], peer.Status{ModuleAlias: alias, Broadhash: broadhash})
	ps.UpdateStatus(hosts[1], peer.Status{ModuleAlias: alias, Broadhash: broadhash})
	ps.UpdateStatus(hosts[2], peer.Status{ModuleAlias: alias, Broadhash: "different"})
	ps.UpdateStatus(hosts[3], peer.Status{ModuleAlias: "other-chain", Broadhash: broadhash})

	got := ps.CalculateConsensus(alias, broadhash)
	if got != 50 {
		t.Fatalf("got consensus %v, want 50", got)
	}

	if peer.IsPoorConsensus(got, 66, false) != true {
		t.Fatalf("50%% consensus under a 66%% minimum should be poor")
	}

	if peer.IsPoorConsensus(got, 66, true) != false {
		t.Fatalf("forgingForce should override a poor consensus reading")
	}
}
