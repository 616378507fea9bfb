package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var delegatePassphrase string

var delegateCmd = &cobra.Command{
	Use:   "delegate",
	Short: "Print a forging.delegates entry for the stored secret's secrets.yaml",
	Run:   delegateRun,
}

func init() {
	rootCmd.AddCommand(delegateCmd)
	delegateCmd.Flags().StringVarP(&delegatePassphrase, "passphrase", "k", "", "passphrase the secret was encrypted with")
}

func delegateRun(cmd *cobra.Command, args []string) {
	secret, err := readSecretFile(secretPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("paste into the node's secrets.yaml under forging.delegates:")
	fmt.Println("  - salt:", secret.Salt)
	fmt.Println("    nonce:", secret.Nonce)
	fmt.Println("    ciphertext:", secret.Ciphertext)
	fmt.Println("    passphrase:", delegatePassphrase)
}
