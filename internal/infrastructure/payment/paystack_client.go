package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
)

const paystackVerifyPath = "/transaction/verify/%s"

// PaystackClient talks to the Paystack transaction API
type PaystackClient struct {
	config     PaystackConfig
	httpClient *http.Client
}

// NewPaystackClient creates a client. Every call is bounded by cfg.Timeout.
func NewPaystackClient(cfg PaystackConfig) (*PaystackClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PaystackClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// VerifyTransaction asks Paystack for the state of reference. An unknown
// reference is reported as a failed charge. Timeouts and transport errors
// are ErrOutcomeUnknown.
func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*finance.GatewayTransaction, error) {
	endpoint := c.config.BaseURL + fmt.Sprintf(paystackVerifyPath, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, finance.ErrOutcomeUnknown.WithMessage("Paystack verify request failed: " + err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, finance.ErrOutcomeUnknown.WithMessage("Paystack verify response unreadable: " + err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &finance.GatewayTransaction{Reference: reference, Status: finance.GatewayTransactionFailed}, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, finance.ErrOutcomeUnknown.WithMessagef("Paystack verify returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("paystack: verify %s returned %d: %s", reference, resp.StatusCode, truncate(body, 200))
	}

	var env paystackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("paystack: decode envelope: %w", err)
	}
	if !env.Status {
		return nil, errors.New("paystack: verify rejected: " + env.Message)
	}
	var tx paystackTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("paystack: decode transaction: %w", err)
	}
	return &finance.GatewayTransaction{
		Reference:   tx.Reference,
		Status:      mapPaystackStatus(tx.Status),
		AmountMinor: tx.Amount,
		Currency:    valueobject.Currency(strings.ToUpper(tx.Currency)),
	}, nil
}

func mapPaystackStatus(s string) finance.GatewayTransactionStatus {
	switch strings.ToLower(s) {
	case "success":
		return finance.GatewayTransactionSuccess
	case "abandoned":
		return finance.GatewayTransactionAbandoned
	case "failed", "reversed":
		return finance.GatewayTransactionFailed
	default:
		return finance.GatewayTransactionPending
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

var _ finance.TransactionVerifier = (*PaystackClient)(nil)
