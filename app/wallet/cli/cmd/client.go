package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/go-resty/resty/v2"
)

// apiError matches the error document returned by the node.
type apiError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type submitResponse struct {
	Status string `json:"status"`
}

type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance int64              `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latest_block"`
	Pending     int       `json:"pending"`
	Balances    []balance `json:"balances"`
}

// client talks to the public api of a node.
type client struct {
	rc *resty.Client
}

func newClient(baseURL string) *client {
	return &client{
		rc: resty.New().SetBaseURL(baseURL),
	}
}

// submit sends a signed transaction to the node.
func (c *client) submit(tx database.Tx) (string, error) {
	var result submitResponse
	var apiErr apiError

	resp, err := c.rc.R().
		SetBody(tx).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/tx/submit")
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		return "", toError(resp.StatusCode(), apiErr)
	}

	return result.Status, nil
}

// balance returns the balance the node holds for the account.
func (c *client) balance(account database.AccountID) (int64, error) {
	var result balances
	var apiErr apiError

	resp, err := c.rc.R().
		SetResult(&result).
		SetError(&apiErr).
		SetPathParam("account", string(account)).
		Get("/v1/balances/list/{account}")
	if err != nil {
		return 0, err
	}

	if resp.IsError() {
		return 0, toError(resp.StatusCode(), apiErr)
	}

	for _, bal := range result.Balances {
		if bal.Account == account {
			return bal.Balance, nil
		}
	}

	return 0, nil
}

func toError(status int, apiErr apiError) error {
	if apiErr.Error == "" {
		return fmt.Errorf("node returned status %d", status)
	}

	if len(apiErr.Fields) > 0 {
		return fmt.Errorf("%s: %v", apiErr.Error, apiErr.Fields)
	}

	return errors.New(apiErr.Error)
}
