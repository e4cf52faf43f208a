package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount int64
	data   string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		status, err := sendWithDetails(newClient(url), privateKey, database.AccountID(to), amount, data)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(status)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the amount.")
	sendCmd.Flags().Int64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().StringVarP(&data, "data", "d", "", "Data to attach, parsed as JSON when valid.")
}

func sendWithDetails(c *client, privateKey *ecdsa.PrivateKey, to database.AccountID, amount int64, data string) (string, error) {
	tx := database.Tx{
		To:        to,
		Amount:    amount,
		Data:      parseData(data),
		TimeStamp: database.Now(),
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return "", err
	}

	return c.submit(signedTx)
}

// parseData keeps structured data structured. Numbers keep the digits that
// were typed. Anything that isn't valid JSON is sent as a plain string.
func parseData(data string) any {
	if data == "" {
		return nil
	}

	d := json.NewDecoder(strings.NewReader(data))
	d.UseNumber()

	var v any
	if err := d.Decode(&v); err != nil {
		return data
	}

	// Anything after the first value means this wasn't a single document.
	if err := d.Decode(new(any)); !errors.Is(err, io.EOF) {
		return data
	}

	return v
}
