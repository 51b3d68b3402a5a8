package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/httpclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultFailure = "faucet claim failed"

// Sender is the resilient request path the claimer goes through
type Sender interface {
	Send(ctx context.Context, url string, spec httpclient.RequestSpec, policy httpclient.RetryPolicy) (*httpclient.Response, error)
}

// ClaimResult is the outcome of one claim. Failures are reported here and
// never returned as errors.
type ClaimResult struct {
	Success bool
	Hash    string
	Amount  *big.Int
	Error   string
}

type claimRequest struct {
	Address string `json:"address"`
}

type claimResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Data    struct {
		Hash   string          `json:"hash"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"data"`
}

type Claimer struct {
	client   Sender
	endpoint string
	policy   httpclient.RetryPolicy
	logger   *logrus.Logger
}

func NewClaimer(client Sender, endpoint string, policy httpclient.RetryPolicy, logger *logrus.Logger) *Claimer {
	return &Claimer{
		client:   client,
		endpoint: endpoint,
		policy:   policy,
		logger:   logger,
	}
}

// Claim asks the faucet to fund address
func (c *Claimer) Claim(ctx context.Context, address common.Address) ClaimResult {
	body, err := json.Marshal(claimRequest{Address: address.Hex()})
	if err != nil {
		return ClaimResult{Error: err.Error()}
	}

	resp, err := c.client.Send(ctx, c.endpoint, httpclient.RequestSpec{
		Method: http.MethodPost,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   httpclient.BrowserUserAgent,
		},
		Body: body,
	}, c.policy)
	if err != nil {
		c.logger.Debugf("Faucet request for %s failed: %v", address.Hex(), err)
		return ClaimResult{Error: describeFailure(err)}
	}

	var parsed claimResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return ClaimResult{Error: fmt.Sprintf("invalid faucet response: %v", err)}
	}
	if !parsed.Success {
		return ClaimResult{Error: parsed.reason()}
	}

	return ClaimResult{
		Success: true,
		Hash:    parsed.Data.Hash,
		Amount:  parsed.Data.Amount.BigInt(),
	}
}

func (r claimResponse) reason() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	default:
		return defaultFailure
	}
}

// describeFailure prefers the faucet's own explanation on an error status
func describeFailure(err error) string {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		var parsed claimResponse
		if json.Unmarshal(statusErr.Body, &parsed) == nil && (parsed.Error != "" || parsed.Message != "") {
			return fmt.Sprintf("%s (status %d)", parsed.reason(), statusErr.Code)
		}
	}
	return err.Error()
}
