package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

var (
	sendTo     string
	sendAmount uint64
	sendFee    uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transfer transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "url of the node's public API")
	sendCmd.Flags().StringVarP(&accountPassphrase, "passphrase", "k", "", "passphrase the secret was encrypted with")
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "recipient address")
	sendCmd.Flags().Uint64VarP(&sendAmount, "amount", "v", 0, "amount to send")
	sendCmd.Flags().Uint64VarP(&sendFee, "fee", "c", 0, "fee offered to the forging delegate")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadPrivateKey(secretPath(), accountPassphrase)
	if err != nil {
		log.Fatal(err)
	}

	senderAddress, err := signatureAddress(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	tx := txtypes.Transaction{
		Type:            txtypes.Transfer,
		SenderPublicKey: signature.PublicKeyHex(&privateKey.PublicKey),
		SenderID:        senderAddress,
		RecipientID:     sendTo,
		Amount:          sendAmount,
		Fee:             sendFee,
		Timestamp:       time.Now().Unix(),
	}

	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		log.Fatal(err)
	}
	tx.Signature = sig

	id, err := tx.Hash()
	if err != nil {
		log.Fatal(err)
	}
	tx.ID = id

	data, err := json.Marshal(tx)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Println("submitted transaction:", tx.ID)
	fmt.Println("node response:", resp.Status)
}
