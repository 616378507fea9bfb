package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
)

var accountPassphrase string

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address and public key for the stored secret",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.Flags().StringVarP(&accountPassphrase, "passphrase", "k", "", "passphrase the secret was encrypted with")
}

func accountRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadPrivateKey(secretPath(), accountPassphrase)
	if err != nil {
		log.Fatal(err)
	}

	publicKey := signature.PublicKeyHex(&privateKey.PublicKey)

	address, err := signatureAddress(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("address:", address)
	fmt.Println("publicKey:", publicKey)
}
