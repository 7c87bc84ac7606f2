// Package jupiter implements the quote provider port against the Jupiter
// swap aggregator HTTP API.
package jupiter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"hydrabot/internal/ports"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://quote-api.jup.ag/v6"

// Client implements ports.QuoteProvider against the Jupiter v6 API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  ports.Logger
}

// Config holds configuration specific to the Jupiter client adapter.
type Config struct {
	BaseURL string
	// RequestsPerMinute caps outbound quote traffic. Zero disables limiting.
	RequestsPerMinute int
	Timeout           time.Duration
	Logger            ports.Logger
}

// New creates a new Jupiter client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Jupiter client")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute/10+1)
	}

	cfg.Logger.Info(context.Background(), "Jupiter client configured", map[string]interface{}{"baseURL": baseURL})

	return &Client{http: httpClient, limiter: limiter, logger: cfg.Logger}, nil
}

// quoteResponse mirrors the fields of the Jupiter /quote payload we consume.
// Amounts arrive as raw lamport strings and must be parsed exactly.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type swapRequest struct {
	QuoteResponse interface{} `json:"quoteResponse"`
	UserPublicKey string      `json:"userPublicKey"`
	WrapUnwrapSOL bool        `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// GetQuote fetches a swap quote for the given mint pair and input amount.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*ports.RawQuote, error) {
	op := "GetQuote"
	if inputMint == "" || outputMint == "" {
		return nil, fmt.Errorf("%s: input and output mints are required: %w", op, ports.ErrInvalidRequest)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive, got %f: %w", op, amount, ports.ErrInvalidRequest)
	}
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Jupiter takes amounts in raw base units (lamports for SOL-side mints).
	lamports := decimal.NewFromFloat(amount).Mul(decimal.New(1, 9)).Truncate(0)

	var quote quoteResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      lamports.String(),
			"slippageBps": fmt.Sprintf("%d", slippageBps),
		}).
		SetResult(&quote).
		SetError(&apiErr).
		Get("/quote")
	if err != nil {
		c.logger.Warn(ctx, "Quote request failed", map[string]interface{}{"op": op, "error": err.Error()})
		return nil, c.transportError(ctx, op, err)
	}
	if resp.IsError() {
		return nil, c.statusError(ctx, op, resp.StatusCode(), apiErr.Error)
	}

	inAmt, err := lamportsToFloat(quote.InAmount)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed inAmount %q: %w", op, quote.InAmount, ports.ErrProviderUnavailable)
	}
	outAmt, err := lamportsToFloat(quote.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed outAmount %q: %w", op, quote.OutAmount, ports.ErrProviderUnavailable)
	}
	impact, err := decimal.NewFromString(quote.PriceImpactPct)
	if err != nil {
		impact = decimal.Zero
	}

	route := make([]string, 0, len(quote.RoutePlan))
	for _, hop := range quote.RoutePlan {
		route = append(route, hop.SwapInfo.Label)
	}

	c.logger.Debug(ctx, "Quote received", map[string]interface{}{
		"op": op, "inputMint": inputMint, "outputMint": outputMint,
		"inAmount": inAmt, "outAmount": outAmt, "hops": len(route),
	})

	impactF, _ := impact.Float64()
	return &ports.RawQuote{
		InputMint:      quote.InputMint,
		OutputMint:     quote.OutputMint,
		InAmount:       inAmt,
		OutAmount:      outAmt,
		PriceImpactPct: impactF,
		RoutePlan:      route,
	}, nil
}

// BuildSwap exchanges a quote for a serialized swap transaction.
func (c *Client) BuildSwap(ctx context.Context, quote *ports.RawQuote, userPublicKey string) (string, error) {
	op := "BuildSwap"
	if quote == nil {
		return "", fmt.Errorf("%s: quote is required: %w", op, ports.ErrInvalidRequest)
	}
	if userPublicKey == "" {
		return "", fmt.Errorf("%s: user public key is required: %w", op, ports.ErrInvalidRequest)
	}
	if err := c.wait(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var swap swapResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(swapRequest{QuoteResponse: quote, UserPublicKey: userPublicKey, WrapUnwrapSOL: true}).
		SetResult(&swap).
		SetError(&apiErr).
		Post("/swap")
	if err != nil {
		c.logger.Warn(ctx, "Swap build request failed", map[string]interface{}{"op": op, "error": err.Error()})
		return "", c.transportError(ctx, op, err)
	}
	if resp.IsError() {
		return "", c.statusError(ctx, op, resp.StatusCode(), apiErr.Error)
	}
	if swap.SwapTransaction == "" {
		return "", fmt.Errorf("%s: empty swap transaction in response: %w", op, ports.ErrProviderUnavailable)
	}
	return swap.SwapTransaction, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", ports.ErrContextCanceled)
	}
	return nil
}

// transportError maps network-level failures to port sentinels.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ports.ErrContextCanceled)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ports.ErrProviderUnavailable)
}

// statusError maps HTTP status codes to port sentinels.
func (c *Client) statusError(ctx context.Context, op string, status int, apiMsg string) error {
	c.logger.Warn(ctx, "Provider returned error status", map[string]interface{}{"op": op, "status": status, "message": apiMsg})
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: status %d (%s): %w", op, status, apiMsg, ports.ErrRateLimited)
	case status >= 400 && status < 500:
		return fmt.Errorf("%s: status %d (%s): %w", op, status, apiMsg, ports.ErrInvalidRequest)
	default:
		return fmt.Errorf("%s: status %d (%s): %w", op, status, apiMsg, ports.ErrProviderUnavailable)
	}
}

// lamportsToFloat converts a raw base-unit string into a token amount.
func lamportsToFloat(raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	f, _ := d.Div(decimal.New(1, 9)).Float64()
	return f, nil
}
