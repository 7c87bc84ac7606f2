// Package solanarpc implements the chain submitter port over the Solana
// JSON-RPC HTTP interface.
package solanarpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hydrabot/internal/ports"

	"github.com/go-resty/resty/v2"
)

// Submitter implements ports.ChainSubmitter against a Solana RPC node.
type Submitter struct {
	http   *resty.Client
	logger ports.Logger
}

// Config holds configuration specific to the Solana RPC adapter.
type Config struct {
	RPCURL  string
	Timeout time.Duration
	Logger  ports.Logger
}

// New creates a new Solana RPC submitter.
func New(cfg Config) (*Submitter, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Solana RPC submitter")
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL is required: %w", ports.ErrConfigurationError)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.RPCURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Submitter{http: httpClient, logger: cfg.Logger}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// signatureStatus mirrors the getSignatureStatuses result entry.
type signatureStatus struct {
	Slot               int64           `json:"slot"`
	Confirmations      *int64          `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// Submit broadcasts a signed, base64-encoded transaction.
func (s *Submitter) Submit(ctx context.Context, signedTx string) (string, error) {
	op := "Submit"
	if signedTx == "" {
		return "", fmt.Errorf("%s: signed transaction is required: %w", op, ports.ErrInvalidRequest)
	}

	resp, err := s.call(ctx, "sendTransaction", []interface{}{
		signedTx,
		map[string]interface{}{"encoding": "base64", "skipPreflight": false},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var signature string
	if err := json.Unmarshal(resp.Result, &signature); err != nil || signature == "" {
		return "", fmt.Errorf("%s: malformed sendTransaction result: %w", op, ports.ErrProviderUnavailable)
	}

	s.logger.Info(ctx, "Transaction submitted", map[string]interface{}{"signature": signature})
	return signature, nil
}

// Confirm reports the current confirmation state of a signature. It performs
// a single status query; polling cadence belongs to the caller.
func (s *Submitter) Confirm(ctx context.Context, signature string) (*ports.ConfirmResult, error) {
	op := "Confirm"
	if signature == "" {
		return nil, fmt.Errorf("%s: signature is required: %w", op, ports.ErrInvalidRequest)
	}

	resp, err := s.call(ctx, "getSignatureStatuses", []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": true},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var wrapper struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := json.Unmarshal(resp.Result, &wrapper); err != nil {
		return nil, fmt.Errorf("%s: malformed getSignatureStatuses result: %w", op, ports.ErrProviderUnavailable)
	}
	if len(wrapper.Value) == 0 || wrapper.Value[0] == nil {
		// Not yet visible to the node. Caller keeps polling.
		return &ports.ConfirmResult{Confirmed: false}, nil
	}

	st := wrapper.Value[0]
	result := &ports.ConfirmResult{Slot: st.Slot}
	if len(st.Err) > 0 && string(st.Err) != "null" {
		result.Err = string(st.Err)
		return result, nil
	}
	if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
		result.Confirmed = true
		result.BlockTime = time.Now().UTC()
	}
	return result, nil
}

func (s *Submitter) call(ctx context.Context, method string, params []interface{}) (*rpcResponse, error) {
	var out rpcResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&out).
		Post("")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %v: %w", method, err, ports.ErrContextCanceled)
		}
		return nil, fmt.Errorf("%s: %v: %w", method, err, ports.ErrProviderUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: status %d: %w", method, resp.StatusCode(), ports.ErrProviderUnavailable)
	}
	if out.Error != nil {
		s.logger.Warn(ctx, "RPC node returned error", map[string]interface{}{"method": method, "code": out.Error.Code, "message": out.Error.Message})
		return nil, fmt.Errorf("%s: rpc error %d (%s): %w", method, out.Error.Code, out.Error.Message, ports.ErrExecutionRejected)
	}
	return &out, nil
}
