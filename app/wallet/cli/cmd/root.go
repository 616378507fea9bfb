// Package cmd is the keytool CLI: generate a delegate signing key, inspect
// an account's chain state, and submit signed transactions to a node.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
)

const keyExtension = ".secret"

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private", "name of the secret file under account-path")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "directory holding encrypted secret files")
}

var rootCmd = &cobra.Command{
	Use:   "keytool",
	Short: "Manage delegate signing keys and submit transactions",
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func secretPath() string {
	if !strings.HasSuffix(accountName, keyExtension) {
		accountName += keyExtension
	}

	return filepath.Join(accountPath, accountName)
}
