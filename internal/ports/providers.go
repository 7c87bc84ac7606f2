package ports

import (
	"context"
	"time"

	"hydrabot/internal/domain"
)

// RawQuote is the provider's answer before the platform commission is applied.
// Decoding from the provider's wire format happens once, inside the adapter;
// nothing downstream sees untyped payloads.
type RawQuote struct {
	InputMint      string
	OutputMint     string
	InAmount       float64
	OutAmount      float64
	PriceImpactPct float64
	RoutePlan      []string // Venue labels along the route, informational only
}

// QuoteProvider wraps the external DEX aggregator's quote and swap endpoints.
// Implementations must be safe for concurrent use and must never mutate
// persisted state.
type QuoteProvider interface {
	// GetQuote fetches a swap proposal. Transient failures are reported as
	// ErrProviderUnavailable or ErrRateLimited (retriable); malformed requests
	// as ErrInvalidRequest (not retriable).
	GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*RawQuote, error)
	// BuildSwap asks the aggregator to assemble an unsigned transaction for a
	// previously fetched quote, returning it base64-encoded.
	BuildSwap(ctx context.Context, quote *RawQuote, userPublicKey string) (string, error)
}

// ConfirmResult is the outcome of a confirmation poll.
type ConfirmResult struct {
	Confirmed bool
	Slot      int64
	BlockTime time.Time
	Err       string // Chain-reported failure reason, if any
}

// TxSigner signs a base64-encoded transaction before submission. The swap
// builder returns transactions unsigned; a deployment injects its treasury
// keypair here.
type TxSigner interface {
	Sign(ctx context.Context, unsignedTx string) (string, error)
}

// ChainSubmitter submits signed transactions and polls their confirmation.
type ChainSubmitter interface {
	// Submit broadcasts a signed transaction and returns its signature.
	Submit(ctx context.Context, signedTx string) (string, error)
	// Confirm reports the confirmation state of a signature. Callers poll it
	// under their own timeout; a single call never blocks for the full window.
	Confirm(ctx context.Context, signature string) (*ConfirmResult, error)
}

// PriceSource supplies current market prices for portfolio revaluation.
type PriceSource interface {
	// Price returns the current market price for a token symbol.
	Price(ctx context.Context, tokenSymbol string) (float64, error)
}

// EventBroadcaster receives finalized state changes for downstream push.
// Publishing is fire-and-forget: failures are logged, never propagated into
// settlement.
type EventBroadcaster interface {
	Publish(ctx context.Context, evt domain.Event)
}
