// Demo driver: runs synthetic signals through the full trading pipeline
// against an in-memory database and a simulated venue, then prints the
// commission pool and per-user portfolios. Useful for eyeballing settlement
// behavior without touching any external provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"hydrabot/config"
	"hydrabot/internal/adapters/logger"
	"hydrabot/internal/adapters/sqlite"
	"hydrabot/internal/app"
	"hydrabot/internal/domain"
	"hydrabot/internal/eligibility"
	"hydrabot/internal/execution"
	"hydrabot/internal/ledger"
	"hydrabot/internal/portfolio"
	"hydrabot/internal/ports"
	"hydrabot/internal/quote"
	"hydrabot/internal/signals"

	"github.com/google/uuid"
)

var (
	numSignals  = flag.Int("signals", 20, "Number of synthetic signals to run")
	numUsers    = flag.Int("users", 3, "Number of demo users")
	seed        = flag.Int64("seed", 0, "RNG seed, 0 for time-based")
	failureRate = flag.Float64("failure-rate", 0.1, "Simulated venue failure rate")
)

// offlineQuotes answers quotes locally so the demo never leaves the process.
type offlineQuotes struct {
	rng *rand.Rand
}

func (p *offlineQuotes) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*ports.RawQuote, error) {
	rate := 200 + p.rng.Float64()*100
	return &ports.RawQuote{
		InputMint:  inputMint,
		OutputMint: outputMint,
		InAmount:   amount,
		OutAmount:  amount * rate,
	}, nil
}

func (p *offlineQuotes) BuildSwap(ctx context.Context, q *ports.RawQuote, userPublicKey string) (string, error) {
	return "", fmt.Errorf("offline demo cannot build swaps: %w", ports.ErrInvalidRequest)
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))
	appLogger.Info(ctx, "Demo run starting", map[string]interface{}{
		"signals": *numSignals, "users": *numUsers, "seed": s,
	})

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: ":memory:", Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open in-memory database: %v", err)
	}
	defer repo.Close()

	broker, err := quote.NewBroker(quote.Config{
		Provider:       &offlineQuotes{rng: rand.New(rand.NewSource(s + 1))},
		Logger:         appLogger,
		CommissionRate: cfg.CommissionRate,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build quote broker: %v", err)
	}

	commissionLedger, err := ledger.NewLedger(ledger.Config{
		Repo:           repo,
		Converter:      broker,
		Logger:         appLogger,
		PlatformMint:   "DemoPlatformMint",
		BurnPercentage: cfg.BurnPercentage,
		MaxRetries:     cfg.LedgerMaxRetries,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build commission ledger: %v", err)
	}

	reconciler, err := portfolio.NewReconciler(portfolio.Config{
		Positions:      repo,
		Portfolios:     repo,
		Logger:         appLogger,
		DriftTolerance: cfg.DriftTolerance,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build portfolio reconciler: %v", err)
	}

	outcomes := execution.NewRandomOutcomes(s+2, *failureRate, cfg.SimMaxSlippage)
	executor, err := execution.NewSimulatedExecutor(outcomes, 0, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to build simulated executor: %v", err)
	}

	coordinator, err := execution.NewCoordinator(execution.Config{
		Orders:     repo,
		Executions: repo,
		Quotes:     broker,
		Executor:   executor,
		Ledger:     commissionLedger,
		Reconciler: reconciler,
		Logger:     appLogger,
		Mints: execution.MintTable{
			Base:   cfg.BaseMint,
			Tokens: map[string]string{cfg.PlatformSymbol: "DemoPlatformMint"},
		},
		SlippageBps:    cfg.DefaultSlippageBps,
		CommissionRate: cfg.CommissionRate,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build execution coordinator: %v", err)
	}

	ingestor, err := signals.NewIngestor(signals.Config{
		SignalRepo:      repo,
		OrderRepo:       repo,
		Logger:          appLogger,
		EngineWhitelist: cfg.EngineWhitelist,
		MinConfidence:   cfg.MinConfidence,
		AutoTradeAmount: cfg.AutoTradeAmount,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build signal ingestor: %v", err)
	}

	service, err := app.NewTradingService(app.Config{
		Ingestor:   ingestor,
		Executor:   coordinator,
		Portfolios: reconciler,
		Gate:       eligibility.NewGate(0, 0),
		Facts: &app.RepoFactsProvider{
			Orders:          repo,
			EmailVerified:   true,
			WalletConnected: true,
			TokenBalance:    1,
			RiskTolerance:   "medium",
		},
		Orders:     repo,
		Positions:  repo,
		Executions: repo,
		Commission: repo,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build trading service: %v", err)
	}

	var engineIDs []string
	for id := range domain.DefaultEngines {
		engineIDs = append(engineIDs, id)
	}
	executed, failed := 0, 0
	for i := 0; i < *numSignals; i++ {
		engineID := engineIDs[rng.Intn(len(engineIDs))]
		user := fmt.Sprintf("demo-user-%d", rng.Intn(*numUsers)+1)
		sig := &domain.TradingSignal{
			ID:         uuid.NewString(),
			Engine:     engineID,
			Symbol:     cfg.PlatformSymbol,
			Type:       domain.SignalBuy,
			Confidence: 0.7 + rng.Float64()*0.3,
			Price:      0.004 + rng.Float64()*0.001,
			CreatedAt:  time.Now().UTC(),
		}

		order, err := service.IngestSignal(ctx, sig, user)
		if err != nil {
			appLogger.Warn(ctx, "Signal rejected", map[string]interface{}{"engine": engineID, "error": err.Error()})
			continue
		}
		if order == nil {
			continue
		}
		exec, err := service.ExecuteOrder(ctx, order.ID)
		if err != nil {
			appLogger.Warn(ctx, "Execution errored", map[string]interface{}{"orderID": order.ID, "error": err.Error()})
			continue
		}
		if exec.Status == domain.ExecutionSuccess {
			executed++
		} else {
			failed++
		}
	}

	stats, err := service.GetCommissionStats(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to read commission stats: %v", err)
	}

	fmt.Printf("\n=== Demo run summary (seed %d) ===\n", s)
	fmt.Printf("Signals: %d  Executed: %d  Failed: %d\n", *numSignals, executed, failed)
	fmt.Printf("Commission pool: total=%.4f burn=%.4f (version %d)\n",
		stats.Pool.TotalCommissions, stats.Pool.PendingBurn, stats.Pool.Version)
	for u := 1; u <= *numUsers; u++ {
		user := fmt.Sprintf("demo-user-%d", u)
		pf, err := service.GetPortfolio(ctx, user)
		if err != nil {
			appLogger.Warn(ctx, "Portfolio read failed", map[string]interface{}{"userID": user, "error": err.Error()})
			continue
		}
		fmt.Printf("%s: totalValue=%.4f totalPnl=%.4f\n", user, pf.TotalValue, pf.TotalPnl)
	}
}
