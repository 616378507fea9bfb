package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
)

var url string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the stored account's on-chain state",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "url of the node's public API")
	balanceCmd.Flags().StringVarP(&accountPassphrase, "passphrase", "k", "", "passphrase the secret was encrypted with")
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadPrivateKey(secretPath(), accountPassphrase)
	if err != nil {
		log.Fatal(err)
	}

	address, err := signatureAddress(privateKey)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("address:", address)

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/%s", url, address))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		fmt.Println("account has no on-chain state yet")
		return
	}

	var account store.Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		log.Fatal(err)
	}

	fmt.Println("balance:", account.Balance)
	fmt.Println("unconfirmedBalance:", account.UnconfirmedBalance)
	fmt.Println("isDelegate:", account.IsDelegate)
	fmt.Println("voteWeight:", account.VoteWeight)
}
