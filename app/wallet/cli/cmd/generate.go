package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
)

var generatePassphrase string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new mnemonic, derive its signing key, and store it encrypted",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generatePassphrase, "passphrase", "k", "", "passphrase protecting the stored secret (required)")
}

func generateRun(cmd *cobra.Command, args []string) {
	if generatePassphrase == "" {
		log.Fatal("a --passphrase is required to encrypt the generated mnemonic")
	}

	mnemonic, err := signature.NewMnemonic()
	if err != nil {
		log.Fatal(err)
	}

	privateKey, err := signature.KeyFromMnemonic(mnemonic, generatePassphrase)
	if err != nil {
		log.Fatal(err)
	}

	secret, err := signature.EncryptSecret(mnemonic, generatePassphrase)
	if err != nil {
		log.Fatal(err)
	}

	path := secretPath()
	if err := writeSecretFile(path, secret); err != nil {
		log.Fatal(err)
	}

	address, err := signatureAddress(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("mnemonic (write this down, it is never stored in the clear):")
	fmt.Println(mnemonic)
	fmt.Println()
	fmt.Println("address:", address)
	fmt.Println("secret written to:", path)
}
