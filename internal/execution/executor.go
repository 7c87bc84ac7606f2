package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/jpillora/backoff"
)

// Executor settles a pending execution against a venue, mutating it into a
// terminal state. Venue failures are recorded on the execution, not returned;
// a non-nil error means the execution could not be driven to a terminal state
// at all.
type Executor interface {
	Execute(ctx context.Context, exec *domain.TradeExecution, quote *domain.Quote) error
}

// SimulatedExecutor settles trades without touching a chain. Outcomes come
// from an injected provider so tests stay deterministic and demo mode never
// hides randomness inside settlement logic.
type SimulatedExecutor struct {
	outcomes ports.OutcomeProvider
	latency  time.Duration
	logger   ports.Logger
}

// NewSimulatedExecutor creates a simulated executor.
func NewSimulatedExecutor(outcomes ports.OutcomeProvider, latency time.Duration, logger ports.Logger) (*SimulatedExecutor, error) {
	if outcomes == nil {
		return nil, fmt.Errorf("outcome provider is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for simulated executor")
	}
	return &SimulatedExecutor{outcomes: outcomes, latency: latency, logger: logger}, nil
}

// Execute waits out the configured latency, draws an outcome and applies it.
func (e *SimulatedExecutor) Execute(ctx context.Context, exec *domain.TradeExecution, quote *domain.Quote) error {
	if e.latency > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("simulated execution interrupted: %w", ports.ErrContextCanceled)
		case <-time.After(e.latency):
		}
	}

	outcome := e.outcomes.Outcome(exec)
	if !outcome.Success {
		exec.Status = domain.ExecutionFailed
		exec.ErrorMessage = outcome.ErrMsg
		if exec.ErrorMessage == "" {
			exec.ErrorMessage = "simulated execution failed"
		}
		return nil
	}

	exec.Status = domain.ExecutionSuccess
	exec.Slippage = outcome.Slippage
	exec.ActualOutput = exec.ExpectedOutput * (1 + outcome.Slippage)
	exec.BlockTime = time.Now().UTC()
	return nil
}

// RandomOutcomes is the production OutcomeProvider for demo mode: a seeded
// source drawing failures at a configured rate and slippage uniformly within
// a bound.
type RandomOutcomes struct {
	mu          sync.Mutex
	rng         *rand.Rand
	failureRate float64
	maxSlippage float64
}

// NewRandomOutcomes creates a seeded outcome provider.
func NewRandomOutcomes(seed int64, failureRate, maxSlippage float64) *RandomOutcomes {
	return &RandomOutcomes{
		rng:         rand.New(rand.NewSource(seed)),
		failureRate: failureRate,
		maxSlippage: maxSlippage,
	}
}

// Outcome draws one simulated result.
func (r *RandomOutcomes) Outcome(exec *domain.TradeExecution) ports.SimOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Float64() < r.failureRate {
		return ports.SimOutcome{Success: false, ErrMsg: "simulated venue rejection"}
	}
	// Uniform in [-maxSlippage, +maxSlippage].
	slip := (r.rng.Float64()*2 - 1) * r.maxSlippage
	return ports.SimOutcome{Success: true, Slippage: slip}
}

// SwapBuilder assembles an unsigned swap transaction for a quote. The quote
// broker satisfies this.
type SwapBuilder interface {
	BuildSwap(ctx context.Context, quote *ports.RawQuote, userPublicKey string) (string, error)
}

// PassthroughSigner returns the transaction unchanged. It stands in where
// submission is stubbed out and no treasury keypair is loaded.
type PassthroughSigner struct{}

// Sign implements ports.TxSigner.
func (PassthroughSigner) Sign(_ context.Context, unsignedTx string) (string, error) {
	return unsignedTx, nil
}

// LiveExecutor drives an execution through the real chain: build, sign,
// submit, poll confirmation under a bounded window. A timeout marks the
// execution FAILED but flags it for reconciliation, because the transaction
// may still have landed.
type LiveExecutor struct {
	builder        SwapBuilder
	signer         ports.TxSigner
	submitter      ports.ChainSubmitter
	logger         ports.Logger
	wallet         string
	confirmTimeout time.Duration
	pollStart      time.Duration
}

// LiveConfig holds configuration for the live executor.
type LiveConfig struct {
	Builder   SwapBuilder
	Signer    ports.TxSigner
	Submitter ports.ChainSubmitter
	Logger    ports.Logger
	// Wallet is the treasury public key executing swaps.
	Wallet         string
	ConfirmTimeout time.Duration
	PollStart      time.Duration
}

// NewLiveExecutor creates a live executor.
func NewLiveExecutor(cfg LiveConfig) (*LiveExecutor, error) {
	if cfg.Builder == nil || cfg.Submitter == nil {
		return nil, fmt.Errorf("swap builder and chain submitter are required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("transaction signer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for live executor")
	}
	if cfg.Wallet == "" {
		return nil, fmt.Errorf("treasury wallet is required: %w", ports.ErrConfigurationError)
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pollStart := cfg.PollStart
	if pollStart <= 0 {
		pollStart = 500 * time.Millisecond
	}
	return &LiveExecutor{
		builder:        cfg.Builder,
		signer:         cfg.Signer,
		submitter:      cfg.Submitter,
		logger:         cfg.Logger,
		wallet:         cfg.Wallet,
		confirmTimeout: timeout,
		pollStart:      pollStart,
	}, nil
}

// Execute builds, signs and submits the swap, then polls for confirmation.
func (e *LiveExecutor) Execute(ctx context.Context, exec *domain.TradeExecution, quote *domain.Quote) error {
	op := "LiveExecute"

	raw := &ports.RawQuote{
		InputMint:      quote.InputMint,
		OutputMint:     quote.OutputMint,
		InAmount:       quote.InAmount,
		OutAmount:      quote.OutAmount,
		PriceImpactPct: quote.PriceImpactPct,
	}
	unsignedTx, err := e.builder.BuildSwap(ctx, raw, e.wallet)
	if err != nil {
		exec.Status = domain.ExecutionFailed
		exec.ErrorMessage = fmt.Sprintf("swap build failed: %v", err)
		return nil
	}

	signedTx, err := e.signer.Sign(ctx, unsignedTx)
	if err != nil {
		exec.Status = domain.ExecutionFailed
		exec.ErrorMessage = fmt.Sprintf("signing failed: %v", err)
		return nil
	}

	signature, err := e.submitter.Submit(ctx, signedTx)
	if err != nil {
		exec.Status = domain.ExecutionFailed
		exec.ErrorMessage = fmt.Sprintf("submission rejected: %v", err)
		return nil
	}
	exec.TxSignature = signature

	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	boff := &backoff.Backoff{Min: e.pollStart, Max: 5 * time.Second, Factor: 2}

	for {
		result, err := e.submitter.Confirm(confirmCtx, signature)
		if err == nil && result != nil {
			if result.Err != "" {
				exec.Status = domain.ExecutionFailed
				exec.ErrorMessage = fmt.Sprintf("transaction failed on chain: %s: %v", result.Err, ports.ErrExecutionRejected)
				return nil
			}
			if result.Confirmed {
				exec.Status = domain.ExecutionSuccess
				// On-chain actual amounts require parsing the transaction;
				// until then the quoted output stands in for the fill.
				exec.ActualOutput = exec.ExpectedOutput
				exec.BlockTime = result.BlockTime
				if exec.BlockTime.IsZero() {
					exec.BlockTime = time.Now().UTC()
				}
				return nil
			}
		}
		if err != nil {
			e.logger.Warn(ctx, "Confirmation poll failed, retrying", map[string]interface{}{
				"op": op, "signature": signature, "error": err.Error(),
			})
		}

		select {
		case <-confirmCtx.Done():
			// The transaction may still land. Do not assume it did not.
			exec.Status = domain.ExecutionFailed
			exec.ErrorMessage = fmt.Sprintf("confirmation window of %s elapsed: %v", e.confirmTimeout, ports.ErrExecutionTimeout)
			exec.ReconcileRequired = true
			e.logger.Warn(ctx, "Execution timed out awaiting confirmation, flagged for reconciliation", map[string]interface{}{
				"op": op, "executionID": exec.ID, "signature": signature,
			})
			return nil
		case <-time.After(boff.Duration()):
		}
	}
}
