package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hydrabot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// External providers
	QuoteAPIURL    string // DEX aggregator base URL (Jupiter v6 compatible)
	RPCURL         string // Solana RPC endpoint for submission/confirmation
	QuoteRateLimit int    // Max quote requests per minute
	PlatformMint   string // Mint address of the platform token
	PlatformSymbol string // Symbol of the platform token
	BaseMint       string // Mint funding buys and receiving sell proceeds
	TreasuryWallet string // Public key receiving live swaps

	// Trading parameters
	CommissionRate float64 // Fraction of trade output taken as commission (e.g., 0.015)
	// BurnPercentage is the fraction of each commission earmarked for burning.
	// The upstream sources disagree on the split (a flat 50% burn vs a
	// 70/20/10 treasury/burn/buyback schedule), so the burn share is an
	// explicit operator setting. Default: 0.5.
	BurnPercentage     float64
	DefaultSlippageBps int      // Slippage tolerance for regular quotes
	LedgerSlippageBps  int      // High tolerance used for commission conversion
	AutoTradeAmount    float64  // Default order size for auto-executed signals
	MinConfidence      float64  // Signals at or below this are never auto-executed
	EngineWhitelist    []string // Engines allowed to auto-execute signals
	MaxDailyTrades     int      // Per-user daily order cap fed into the eligibility gate
	MinTokenBalance    float64  // Minimum platform-token balance for eligibility

	// Position sizing (Kelly). Statistics are operator-configured until
	// per-user trade history is rich enough to estimate them.
	SizerWinRate float64       // Expected fraction of winning trades
	SizerAvgWin  float64       // Average winning return, as a fraction
	SizerAvgLoss float64       // Average losing return, as a positive fraction
	AutoOrderTTL time.Duration // Unexecuted auto-orders expire after this; zero disables expiry

	// Execution
	SimulatedMode    bool          // Demo mode: swaps are simulated, never submitted
	SimLatency       time.Duration // Injected latency per simulated execution
	SimFailureRate   float64       // Probability a simulated execution fails
	SimMaxSlippage   float64       // Max absolute slippage fraction drawn in simulation
	ConfirmTimeout   time.Duration // Live mode: confirmation polling window
	ConfirmPollStart time.Duration // Initial confirmation poll interval

	// Ledger / reconciliation
	LedgerMaxRetries int     // Pool CAS attempts before escalating LedgerConflict
	DriftTolerance   float64 // Allowed |aggregate - recomputed| before drift is logged

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// HTTP
	HTTPListenAddr string // Address serving the JSON API and the /ws event stream
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// External providers
	cfg.QuoteAPIURL = getEnv("QUOTE_API_URL", "https://quote-api.jup.ag/v6")
	cfg.RPCURL = getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.QuoteRateLimit = getEnvAsInt("QUOTE_RATE_LIMIT", 120)
	if cfg.QuoteRateLimit <= 0 {
		errs = append(errs, "QUOTE_RATE_LIMIT must be positive")
	}
	cfg.PlatformMint = getEnv("PLATFORM_TOKEN_MINT", "")
	cfg.PlatformSymbol = getEnv("PLATFORM_TOKEN_SYMBOL", "BOOMROACH")
	cfg.BaseMint = getEnv("BASE_MINT", "So11111111111111111111111111111111111111112") // wrapped SOL
	cfg.TreasuryWallet = getEnv("TREASURY_WALLET", "")

	// Trading parameters
	cfg.CommissionRate, err = getEnvAsFloatRequired("COMMISSION_RATE", 0.015)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_RATE: %v", err))
	} else if cfg.CommissionRate < 0 || cfg.CommissionRate > 0.1 {
		errs = append(errs, "COMMISSION_RATE must be between 0 and 0.1 (10%)")
	}

	cfg.BurnPercentage, err = getEnvAsFloatRequired("BURN_PERCENTAGE", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BURN_PERCENTAGE: %v", err))
	} else if cfg.BurnPercentage < 0 || cfg.BurnPercentage > 1 {
		errs = append(errs, "BURN_PERCENTAGE must be between 0 and 1")
	}

	cfg.DefaultSlippageBps = getEnvAsInt("DEFAULT_SLIPPAGE_BPS", 50)
	if cfg.DefaultSlippageBps <= 0 || cfg.DefaultSlippageBps > 5000 {
		errs = append(errs, "DEFAULT_SLIPPAGE_BPS must be between 1 and 5000")
	}
	cfg.LedgerSlippageBps = getEnvAsInt("LEDGER_SLIPPAGE_BPS", 1000)
	if cfg.LedgerSlippageBps < cfg.DefaultSlippageBps {
		errs = append(errs, "LEDGER_SLIPPAGE_BPS must be at least DEFAULT_SLIPPAGE_BPS")
	}

	cfg.AutoTradeAmount, err = getEnvAsFloatRequired("AUTO_TRADE_AMOUNT", 500.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid AUTO_TRADE_AMOUNT: %v", err))
	} else if cfg.AutoTradeAmount <= 0 {
		errs = append(errs, "AUTO_TRADE_AMOUNT must be positive")
	}

	cfg.MinConfidence, err = getEnvAsFloatRequired("MIN_SIGNAL_CONFIDENCE", 0.8)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_SIGNAL_CONFIDENCE: %v", err))
	} else if cfg.MinConfidence < 0 || cfg.MinConfidence >= 1 {
		errs = append(errs, "MIN_SIGNAL_CONFIDENCE must be in [0, 1)")
	}

	whitelist := getEnv("ENGINE_WHITELIST", "sniper,reentry,ai-signals,guardian,scalper,arbitrage")
	for _, e := range strings.Split(whitelist, ",") {
		if e = strings.TrimSpace(e); e != "" {
			cfg.EngineWhitelist = append(cfg.EngineWhitelist, e)
		}
	}
	if len(cfg.EngineWhitelist) == 0 {
		errs = append(errs, "ENGINE_WHITELIST must list at least one engine")
	}

	cfg.MaxDailyTrades = getEnvAsInt("MAX_DAILY_TRADES", 50)
	if cfg.MaxDailyTrades <= 0 {
		errs = append(errs, "MAX_DAILY_TRADES must be positive")
	}
	cfg.MinTokenBalance = getEnvAsFloat("MIN_TOKEN_BALANCE", 0)

	// Position sizing
	cfg.SizerWinRate = getEnvAsFloat("SIZER_WIN_RATE", 0.55)
	if cfg.SizerWinRate < 0 || cfg.SizerWinRate > 1 {
		errs = append(errs, "SIZER_WIN_RATE must be between 0 and 1")
	}
	cfg.SizerAvgWin = getEnvAsFloat("SIZER_AVG_WIN", 0.10)
	cfg.SizerAvgLoss = getEnvAsFloat("SIZER_AVG_LOSS", 0.05)
	autoTTLSec := getEnvAsInt("AUTO_ORDER_TTL_SECONDS", 300)
	if autoTTLSec < 0 {
		errs = append(errs, "AUTO_ORDER_TTL_SECONDS cannot be negative")
	}
	cfg.AutoOrderTTL = time.Duration(autoTTLSec) * time.Second

	// Execution
	cfg.SimulatedMode = getEnvAsBool("SIMULATED_MODE", true) // Default to demo mode for safety
	simLatencyMs := getEnvAsInt("SIM_LATENCY_MS", 150)
	if simLatencyMs < 0 {
		errs = append(errs, "SIM_LATENCY_MS cannot be negative")
	}
	cfg.SimLatency = time.Duration(simLatencyMs) * time.Millisecond
	cfg.SimFailureRate = getEnvAsFloat("SIM_FAILURE_RATE", 0.05)
	if cfg.SimFailureRate < 0 || cfg.SimFailureRate > 1 {
		errs = append(errs, "SIM_FAILURE_RATE must be between 0 and 1")
	}
	cfg.SimMaxSlippage = getEnvAsFloat("SIM_MAX_SLIPPAGE", 0.01)

	confirmTimeoutSec := getEnvAsInt("CONFIRM_TIMEOUT_SECONDS", 30)
	if confirmTimeoutSec <= 0 {
		errs = append(errs, "CONFIRM_TIMEOUT_SECONDS must be positive")
	}
	cfg.ConfirmTimeout = time.Duration(confirmTimeoutSec) * time.Second
	confirmPollMs := getEnvAsInt("CONFIRM_POLL_START_MS", 500)
	if confirmPollMs <= 0 {
		errs = append(errs, "CONFIRM_POLL_START_MS must be positive")
	}
	cfg.ConfirmPollStart = time.Duration(confirmPollMs) * time.Millisecond

	// In live mode the submission side must be fully configured.
	if !cfg.SimulatedMode {
		if cfg.TreasuryWallet == "" {
			errs = append(errs, "TREASURY_WALLET must be set in live mode")
		}
		if cfg.PlatformMint == "" {
			errs = append(errs, "PLATFORM_TOKEN_MINT must be set in live mode")
		}
	}

	// Ledger / reconciliation
	cfg.LedgerMaxRetries = getEnvAsInt("LEDGER_MAX_RETRIES", 5)
	if cfg.LedgerMaxRetries <= 0 {
		errs = append(errs, "LEDGER_MAX_RETRIES must be positive")
	}
	cfg.DriftTolerance = getEnvAsFloat("DRIFT_TOLERANCE", 0.01)
	if cfg.DriftTolerance < 0 {
		errs = append(errs, "DRIFT_TOLERANCE cannot be negative")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/hydrabot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Event push
	cfg.HTTPListenAddr = getEnv("HTTP_LISTEN_ADDR", ":8090")
	if cfg.HTTPListenAddr == "" {
		errs = append(errs, "HTTP_LISTEN_ADDR must be set")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// EngineWhitelisted reports whether the engine may auto-execute signals.
func (c *Config) EngineWhitelisted(engine string) bool {
	for _, e := range c.EngineWhitelist {
		if e == engine {
			return true
		}
	}
	return false
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
