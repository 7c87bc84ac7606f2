package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"hydrabot/config"
	"hydrabot/internal/adapters/httpapi"
	"hydrabot/internal/adapters/jupiter"
	"hydrabot/internal/adapters/logger"
	"hydrabot/internal/adapters/solanarpc"
	"hydrabot/internal/adapters/sqlite"
	"hydrabot/internal/adapters/wshub"
	"hydrabot/internal/app"
	"hydrabot/internal/eligibility"
	"hydrabot/internal/execution"
	"hydrabot/internal/ledger"
	"hydrabot/internal/portfolio"
	"hydrabot/internal/quote"
	"hydrabot/internal/risk"
	"hydrabot/internal/signals"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Quote Provider (Jupiter Adapter) and Broker
	jupiterClient, err := jupiter.New(jupiter.Config{
		BaseURL:           cfg.QuoteAPIURL,
		RequestsPerMinute: cfg.QuoteRateLimit,
		Logger:            appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Jupiter client")
		log.Fatalf("FATAL: Failed to initialize Jupiter client: %v", err)
	}
	broker, err := quote.NewBroker(quote.Config{
		Provider:       jupiterClient,
		Logger:         appLogger,
		CommissionRate: cfg.CommissionRate,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize quote broker")
		log.Fatalf("FATAL: Failed to initialize quote broker: %v", err)
	}
	appLogger.Info(ctx, "Quote broker initialized", map[string]interface{}{"api": cfg.QuoteAPIURL})

	// 5. Initialize Executor (simulated in demo mode, chain-backed otherwise)
	var executor execution.Executor
	if cfg.SimulatedMode {
		outcomes := execution.NewRandomOutcomes(time.Now().UnixNano(), cfg.SimFailureRate, cfg.SimMaxSlippage)
		executor, err = execution.NewSimulatedExecutor(outcomes, cfg.SimLatency, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize simulated executor")
			log.Fatalf("FATAL: Failed to initialize simulated executor: %v", err)
		}
		appLogger.Info(ctx, "Simulated executor initialized", map[string]interface{}{
			"failureRate": cfg.SimFailureRate, "maxSlippage": cfg.SimMaxSlippage,
		})
	} else {
		submitter, rpcErr := solanarpc.New(solanarpc.Config{
			RPCURL: cfg.RPCURL,
			Logger: appLogger,
		})
		if rpcErr != nil {
			appLogger.Error(ctx, rpcErr, "FATAL: Failed to initialize Solana RPC submitter")
			log.Fatalf("FATAL: Failed to initialize Solana RPC submitter: %v", rpcErr)
		}
		executor, err = execution.NewLiveExecutor(execution.LiveConfig{
			Builder: broker,
			// No keypair management yet; transactions pass through unsigned.
			Signer:         execution.PassthroughSigner{},
			Submitter:      submitter,
			Logger:         appLogger,
			Wallet:         cfg.TreasuryWallet,
			ConfirmTimeout: cfg.ConfirmTimeout,
			PollStart:      cfg.ConfirmPollStart,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize live executor")
			log.Fatalf("FATAL: Failed to initialize live executor: %v", err)
		}
		appLogger.Info(ctx, "Live executor initialized", map[string]interface{}{"rpc": cfg.RPCURL})
	}

	// 6. Initialize Commission Ledger and Portfolio Reconciler
	commissionLedger, err := ledger.NewLedger(ledger.Config{
		Repo:                  repo,
		Converter:             broker,
		Logger:                appLogger,
		PlatformMint:          cfg.PlatformMint,
		BurnPercentage:        cfg.BurnPercentage,
		ConversionSlippageBps: cfg.LedgerSlippageBps,
		MaxRetries:            cfg.LedgerMaxRetries,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize commission ledger")
		log.Fatalf("FATAL: Failed to initialize commission ledger: %v", err)
	}
	// Without a live price feed positions are valued at cost basis.
	reconciler, err := portfolio.NewReconciler(portfolio.Config{
		Positions:      repo,
		Portfolios:     repo,
		Logger:         appLogger,
		DriftTolerance: cfg.DriftTolerance,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize portfolio reconciler")
		log.Fatalf("FATAL: Failed to initialize portfolio reconciler: %v", err)
	}

	// 7. Initialize Event Hub (websocket broadcast)
	hub := wshub.NewHub(appLogger)
	go hub.Run(ctx)

	// 8. Initialize Execution Coordinator
	coordinator, err := execution.NewCoordinator(execution.Config{
		Orders:     repo,
		Executions: repo,
		Quotes:     broker,
		Executor:   executor,
		Ledger:     commissionLedger,
		Reconciler: reconciler,
		Events:     hub,
		Logger:     appLogger,
		Mints: execution.MintTable{
			Base:   cfg.BaseMint,
			Tokens: map[string]string{cfg.PlatformSymbol: cfg.PlatformMint},
		},
		SlippageBps:    cfg.DefaultSlippageBps,
		CommissionRate: cfg.CommissionRate,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize execution coordinator")
		log.Fatalf("FATAL: Failed to initialize execution coordinator: %v", err)
	}

	// 9. Initialize Signal Ingestor with the Kelly sizer
	sizer, err := risk.NewSizer(repo, cfg.SizerWinRate, cfg.SizerAvgWin, cfg.SizerAvgLoss)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position sizer")
		log.Fatalf("FATAL: Failed to initialize position sizer: %v", err)
	}
	ingestor, err := signals.NewIngestor(signals.Config{
		SignalRepo:      repo,
		OrderRepo:       repo,
		Sizer:           sizer,
		Logger:          appLogger,
		EngineWhitelist: cfg.EngineWhitelist,
		MinConfidence:   cfg.MinConfidence,
		AutoTradeAmount: cfg.AutoTradeAmount,
		OrderTTL:        cfg.AutoOrderTTL,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize signal ingestor")
		log.Fatalf("FATAL: Failed to initialize signal ingestor: %v", err)
	}

	// 10. Initialize Application Service
	tradingService, err := app.NewTradingService(app.Config{
		Ingestor:   ingestor,
		Executor:   coordinator,
		Portfolios: reconciler,
		Gate:       eligibility.NewGate(cfg.MinTokenBalance, cfg.MaxDailyTrades),
		Facts: &app.RepoFactsProvider{
			Orders:          repo,
			EmailVerified:   true,
			WalletConnected: true,
			TokenBalance:    cfg.MinTokenBalance,
			RiskTolerance:   "medium",
		},
		Orders:     repo,
		Positions:  repo,
		Executions: repo,
		Commission: repo,
		Events:     hub,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized", map[string]interface{}{
		"simulated": cfg.SimulatedMode, "commissionRate": cfg.CommissionRate,
	})

	// 11. Serve the JSON API and event stream until interrupted
	server, err := httpapi.NewServer(httpapi.Config{
		Service: tradingService,
		Events:  hub,
		Logger:  appLogger,
		Addr:    cfg.HTTPListenAddr,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize HTTP server")
		log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
	}
	if err := server.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "HTTP server exited with error")
		log.Fatalf("FATAL: HTTP server exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
