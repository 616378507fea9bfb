// Package genesis maintains access to the genesis file: the chain's
// initial delegate roster and account balances, read once at boot.
package genesis

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
)

// genesisID is the fixed block id assigned to height 1. Unlike every
// later block, genesis is never signed or hashed: it is the one block
// every node is expected to already agree on by configuration.
const genesisID = "G"

// Delegate is one seat in the genesis delegate roster: a registered
// delegate present before any Delegate/Vote transaction has run.
type Delegate struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	VoteWeight uint64 `json:"voteWeight"`
}

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time         `json:"date"`
	ChainID         uint16            `json:"chainId"`
	ActiveDelegates int               `json:"activeDelegates"`
	Delegates       []Delegate        `json:"delegates"`
	Balances        map[string]uint64 `json:"balances"`
}

// Load opens and parses the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var g Genesis
	if err := json.Unmarshal(content, &g); err != nil {
		return Genesis{}, err
	}

	return g, nil
}

// Block builds the fixed genesis block: height 1, id "G", no previous
// block, no generator, and no transactions — the delegate roster and
// starting balances are returned by Accounts for the caller to write to
// the store, not carried as transactions in this block.
func (g Genesis) Block() chainstate.Block {
	return chainstate.Block{
		ID:              genesisID,
		Height:          1,
		PreviousBlockID: "",
		Timestamp:       g.Date.Unix(),
	}
}

// Accounts returns the seed set of store.Account values this genesis
// describes: one entry per delegate (marked IsDelegate with its starting
// VoteWeight) and one per funded balance, merged by address so a
// delegate that is also a funded account gets both in a single record.
func (g Genesis) Accounts() []Account {
	byAddress := make(map[string]*Account)

	order := make([]string, 0, len(g.Delegates)+len(g.Balances))

	get := func(address string) *Account {
		a, ok := byAddress[address]
		if !ok {
			a = &Account{Address: address}
			byAddress[address] = a
			order = append(order, address)
		}
		return a
	}

	for _, d := range g.Delegates {
		a := get(d.Address)
		a.PublicKey = d.PublicKey
		a.IsDelegate = true
		a.VoteWeight = d.VoteWeight
	}

	for address, balance := range g.Balances {
		a := get(address)
		a.Balance = balance
	}

	accounts := make([]Account, 0, len(order))
	for _, address := range order {
		accounts = append(accounts, *byAddress[address])
	}
	return accounts
}

// Account is the subset of store.Account fields genesis seeds directly;
// kept separate from store.Account so this package doesn't need to import
// store just to describe its own output.
type Account struct {
	Address    string
	PublicKey  string
	Balance    uint64
	IsDelegate bool
	VoteWeight uint64
}
