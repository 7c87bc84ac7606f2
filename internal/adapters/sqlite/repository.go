package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/mattn/go-sqlite3"
)

// Repository implements the persistence ports (signals, orders, executions,
// positions, portfolios, commission ledger) using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/hydrabot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection. WAL mode for better concurrency under many
	// simultaneous traders; busy timeout so contended writers queue instead of
	// failing immediately.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writers internally; the Go driver behaves best with a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		engine TEXT NOT NULL,
		symbol TEXT NOT NULL,
		type TEXT NOT NULL,
		confidence REAL NOT NULL,
		price REAL NOT NULL,
		reasoning TEXT NOT NULL DEFAULT '',
		expected_return REAL NOT NULL DEFAULT 0,
		strength TEXT NOT NULL DEFAULT '',
		timeframe TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		side TEXT NOT NULL,
		symbol TEXT NOT NULL,
		amount REAL NOT NULL,
		requested_price REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		signal_id TEXT DEFAULT NULL,
		engine TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP DEFAULT NULL
	);
	-- At most one order per (signal, user); duplicate signal delivery must not
	-- create a second order. NULL signal ids (direct orders) are exempt.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_signal_user ON orders (signal_id, user_id)
		WHERE signal_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at);

	CREATE TABLE IF NOT EXISTS trade_executions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		input_mint TEXT NOT NULL,
		output_mint TEXT NOT NULL,
		input_amount REAL NOT NULL,
		expected_output REAL NOT NULL,
		actual_output REAL NOT NULL DEFAULT 0,
		slippage REAL NOT NULL DEFAULT 0,
		commission REAL NOT NULL DEFAULT 0,
		commission_platform REAL NOT NULL DEFAULT 0,
		tx_signature TEXT DEFAULT NULL UNIQUE,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		reconcile_required INTEGER NOT NULL DEFAULT 0,
		block_time TIMESTAMP DEFAULT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_executions_order ON trade_executions (order_id);

	CREATE TABLE IF NOT EXISTS positions (
		user_id TEXT NOT NULL,
		token_symbol TEXT NOT NULL,
		amount REAL NOT NULL,
		avg_buy_price REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, token_symbol)
	);

	CREATE TABLE IF NOT EXISTS portfolios (
		user_id TEXT PRIMARY KEY,
		total_value REAL NOT NULL,
		total_pnl REAL NOT NULL,
		daily_pnl REAL NOT NULL,
		last_updated TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commission_pool (
		id TEXT PRIMARY KEY,
		total_commissions REAL NOT NULL DEFAULT 0,
		total_staked REAL NOT NULL DEFAULT 0,
		pending_burn REAL NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commission_transactions (
		id TEXT PRIMARY KEY,
		execution_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		amount REAL NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_commission_tx_created ON commission_transactions (created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// --- SignalRepository Implementation ---

// CreateSignal persists a signal.
func (r *Repository) CreateSignal(ctx context.Context, sig *domain.TradingSignal) error {
	const query = `
	INSERT INTO signals (id, engine, symbol, type, confidence, price, reasoning, expected_return, strength, timeframe, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		sig.ID, sig.Engine, sig.Symbol, sig.Type, sig.Confidence, sig.Price,
		sig.Reasoning, sig.ExpectedReturn, sig.Strength, sig.Timeframe, sig.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("signal %s already stored: %w", sig.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert signal %s: %w", sig.ID, err)
	}
	return nil
}

// FindSignalByID retrieves a signal by ID.
func (r *Repository) FindSignalByID(ctx context.Context, id string) (*domain.TradingSignal, error) {
	const query = `
	SELECT id, engine, symbol, type, confidence, price, reasoning, expected_return, strength, timeframe, created_at
	FROM signals WHERE id = ?`

	sig := &domain.TradingSignal{}
	var sigType string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sig.ID, &sig.Engine, &sig.Symbol, &sigType, &sig.Confidence, &sig.Price,
		&sig.Reasoning, &sig.ExpectedReturn, &sig.Strength, &sig.Timeframe, &sig.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query signal %s: %w", id, err)
	}
	sig.Type = domain.SignalType(sigType)
	return sig, nil
}

// --- OrderRepository Implementation ---

// CreateOrder persists a new order. Relies on the partial unique index over
// (signal_id, user_id) to enforce at-most-one order per signal delivery.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	const query = `
	INSERT INTO orders (id, user_id, side, symbol, amount, requested_price, status, signal_id, engine, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var signalID sql.NullString
	if order.SignalID != "" {
		signalID = sql.NullString{String: order.SignalID, Valid: true}
	}
	var expiresAt sql.NullTime
	if !order.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: order.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.UserID, order.Side, order.Symbol, order.Amount, order.RequestedPrice,
		order.Status, signalID, order.Engine, order.CreatedAt, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order for signal %s / user %s already exists: %w", order.SignalID, order.UserID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert order for user %s: %w", order.UserID, err)
	}
	r.logger.Debug(ctx, "Order created", map[string]interface{}{"orderID": order.ID, "userID": order.UserID, "symbol": order.Symbol})
	return nil
}

// FindOrderByID retrieves an order by its unique ID.
func (r *Repository) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	const query = `
	SELECT id, user_id, side, symbol, amount, requested_price, status, signal_id, engine, created_at, expires_at
	FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	return order, nil
}

// FindOrderBySignalAndUser retrieves the order created for a (signal, user) pair.
func (r *Repository) FindOrderBySignalAndUser(ctx context.Context, signalID, userID string) (*domain.Order, error) {
	const query = `
	SELECT id, user_id, side, symbol, amount, requested_price, status, signal_id, engine, created_at, expires_at
	FROM orders WHERE signal_id = ? AND user_id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, signalID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order for signal %s / user %s: %w", signalID, userID, err)
	}
	return order, nil
}

// UpdateOrderStatus conditionally moves an order from one status to another.
// The WHERE clause doubles as a compare-and-swap: when the stored status no
// longer equals from, no row matches and the caller lost the transition.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	const query = `UPDATE orders SET status = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update order %s status: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for order %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("order %s is not %s: %w", id, from, ports.ErrOrderNotPending)
	}
	r.logger.Debug(ctx, "Order status updated", map[string]interface{}{"orderID": id, "from": from, "to": to})
	return nil
}

// CountOrdersToday counts orders created by the given user during the
// current UTC day. Timestamps are stored in UTC, so the comparison stays in
// UTC to match the commission-stats daily window.
func (r *Repository) CountOrdersToday(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM orders WHERE user_id = ? AND date(created_at) = date('now')`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders today for user %s: %w", userID, err)
	}
	return count, nil
}

// --- ExecutionRepository Implementation ---

// CreateExecution persists a new PENDING execution.
func (r *Repository) CreateExecution(ctx context.Context, exec *domain.TradeExecution) error {
	const query = `
	INSERT INTO trade_executions (id, order_id, user_id, input_mint, output_mint, input_amount,
	                              expected_output, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID, exec.OrderID, exec.UserID, exec.InputMint, exec.OutputMint,
		exec.InputAmount, exec.ExpectedOutput, exec.Status, exec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert execution for order %s: %w", exec.OrderID, err)
	}
	r.logger.Debug(ctx, "Execution created", map[string]interface{}{"executionID": exec.ID, "orderID": exec.OrderID})
	return nil
}

// FindExecutionByID retrieves an execution by ID.
func (r *Repository) FindExecutionByID(ctx context.Context, id string) (*domain.TradeExecution, error) {
	const query = `
	SELECT id, order_id, user_id, input_mint, output_mint, input_amount, expected_output,
	       actual_output, slippage, commission, commission_platform, tx_signature, status,
	       error_message, reconcile_required, block_time, created_at
	FROM trade_executions WHERE id = ?`

	exec, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query execution %s: %w", id, err)
	}
	return exec, nil
}

// ClaimTerminal atomically moves a PENDING execution into a terminal status.
// Only one caller can win the transition; a second claim reports false so
// retried confirmation polling cannot double-apply settlement.
func (r *Repository) ClaimTerminal(ctx context.Context, exec *domain.TradeExecution) (bool, error) {
	if !exec.Status.IsTerminal() {
		return false, fmt.Errorf("claim requires a terminal status, got %s: %w", exec.Status, ports.ErrInvalidRequest)
	}

	const query = `
	UPDATE trade_executions
	SET status = ?, actual_output = ?, slippage = ?, commission = ?, commission_platform = ?,
	    tx_signature = ?, error_message = ?, reconcile_required = ?, block_time = ?
	WHERE id = ? AND status = ?`

	var txSig sql.NullString
	if exec.TxSignature != "" {
		txSig = sql.NullString{String: exec.TxSignature, Valid: true}
	}
	var blockTime sql.NullTime
	if !exec.BlockTime.IsZero() {
		blockTime = sql.NullTime{Time: exec.BlockTime, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		exec.Status, exec.ActualOutput, exec.Slippage, exec.Commission, exec.CommissionInPlatform,
		txSig, exec.ErrorMessage, exec.ReconcileRequired, blockTime,
		exec.ID, domain.ExecutionPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim terminal transition for execution %s: %w", exec.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for execution %s: %w", exec.ID, err)
	}
	if rows == 0 {
		r.logger.Debug(ctx, "Execution already terminal, claim refused", map[string]interface{}{"executionID": exec.ID})
		return false, nil
	}
	return true, nil
}

// FindReconcileRequired lists timed-out live executions awaiting manual
// on-chain verification.
func (r *Repository) FindReconcileRequired(ctx context.Context) ([]*domain.TradeExecution, error) {
	const query = `
	SELECT id, order_id, user_id, input_mint, output_mint, input_amount, expected_output,
	       actual_output, slippage, commission, commission_platform, tx_signature, status,
	       error_message, reconcile_required, block_time, created_at
	FROM trade_executions WHERE reconcile_required = 1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions requiring reconciliation: %w", err)
	}
	defer rows.Close()

	execs := make([]*domain.TradeExecution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution during FindReconcileRequired: %w", err)
		}
		execs = append(execs, exec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w", err)
	}
	return execs, nil
}

// --- PositionRepository Implementation ---

// FindPosition retrieves a user's position in a token.
func (r *Repository) FindPosition(ctx context.Context, userID, tokenSymbol string) (*domain.Position, error) {
	const query = `
	SELECT user_id, token_symbol, amount, avg_buy_price, updated_at
	FROM positions WHERE user_id = ? AND token_symbol = ?`

	pos := &domain.Position{}
	err := r.db.QueryRowContext(ctx, query, userID, tokenSymbol).Scan(
		&pos.UserID, &pos.TokenSymbol, &pos.Amount, &pos.AvgBuyPrice, &pos.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position %s/%s: %w", userID, tokenSymbol, err)
	}
	return pos, nil
}

// UpsertPosition creates or replaces a user's position in a token.
func (r *Repository) UpsertPosition(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (user_id, token_symbol, amount, avg_buy_price, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, token_symbol) DO UPDATE SET
		amount = excluded.amount,
		avg_buy_price = excluded.avg_buy_price,
		updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, pos.UserID, pos.TokenSymbol, pos.Amount, pos.AvgBuyPrice, pos.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w", pos.UserID, pos.TokenSymbol, err)
	}
	return nil
}

// FindPositionsByUser lists all of a user's positions.
func (r *Repository) FindPositionsByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	const query = `
	SELECT user_id, token_symbol, amount, avg_buy_price, updated_at
	FROM positions WHERE user_id = ? ORDER BY token_symbol`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for user %s: %w", userID, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos := &domain.Position{}
		if err := rows.Scan(&pos.UserID, &pos.TokenSymbol, &pos.Amount, &pos.AvgBuyPrice, &pos.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position during FindPositionsByUser: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- PortfolioRepository Implementation ---

// FindPortfolio retrieves a user's portfolio aggregate.
func (r *Repository) FindPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	const query = `SELECT user_id, total_value, total_pnl, daily_pnl, last_updated FROM portfolios WHERE user_id = ?`

	p := &domain.Portfolio{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.TotalValue, &p.TotalPnl, &p.DailyPnl, &p.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query portfolio for user %s: %w", userID, err)
	}
	return p, nil
}

// UpsertPortfolio creates or replaces a user's portfolio aggregate.
func (r *Repository) UpsertPortfolio(ctx context.Context, p *domain.Portfolio) error {
	const query = `
	INSERT INTO portfolios (user_id, total_value, total_pnl, daily_pnl, last_updated)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		total_value = excluded.total_value,
		total_pnl = excluded.total_pnl,
		daily_pnl = excluded.daily_pnl,
		last_updated = excluded.last_updated`

	_, err := r.db.ExecContext(ctx, query, p.UserID, p.TotalValue, p.TotalPnl, p.DailyPnl, p.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio for user %s: %w", p.UserID, err)
	}
	return nil
}

// --- CommissionRepository Implementation ---

// GetPool retrieves the singleton commission pool, creating it on first use.
func (r *Repository) GetPool(ctx context.Context) (*domain.CommissionPool, error) {
	const query = `
	SELECT id, total_commissions, total_staked, pending_burn, version, updated_at
	FROM commission_pool WHERE id = ?`

	pool := &domain.CommissionPool{}
	err := r.db.QueryRowContext(ctx, query, domain.CommissionPoolID).Scan(
		&pool.ID, &pool.TotalCommissions, &pool.TotalStaked, &pool.PendingBurn, &pool.Version, &pool.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		pool = &domain.CommissionPool{ID: domain.CommissionPoolID, UpdatedAt: time.Now().UTC()}
		const insert = `
		INSERT INTO commission_pool (id, total_commissions, total_staked, pending_burn, version, updated_at)
		VALUES (?, 0, 0, 0, 0, ?)`
		if _, insErr := r.db.ExecContext(ctx, insert, pool.ID, pool.UpdatedAt); insErr != nil && !isUniqueViolation(insErr) {
			return nil, fmt.Errorf("failed to initialize commission pool: %w", insErr)
		}
		// A concurrent initializer may have won; re-read either way.
		return r.GetPool(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query commission pool: %w", err)
	}
	return pool, nil
}

// IncrementPool applies deltas to the pool under an optimistic version check.
// A stale expectedVersion returns ErrVersionConflict; callers re-read and retry.
func (r *Repository) IncrementPool(ctx context.Context, commissionDelta, burnDelta, stakeDelta float64, expectedVersion int64) error {
	const query = `
	UPDATE commission_pool
	SET total_commissions = total_commissions + ?,
	    pending_burn = pending_burn + ?,
	    total_staked = total_staked + ?,
	    version = version + 1,
	    updated_at = ?
	WHERE id = ? AND version = ?`

	result, err := r.db.ExecContext(ctx, query,
		commissionDelta, burnDelta, stakeDelta, time.Now().UTC(),
		domain.CommissionPoolID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to increment commission pool: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for pool increment: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pool version %d is stale: %w", expectedVersion, ports.ErrVersionConflict)
	}
	return nil
}

// CreateCommissionTx inserts a ledger entry. The unique constraint on
// execution_id is the idempotence guard for settlement retries.
func (r *Repository) CreateCommissionTx(ctx context.Context, tx *domain.CommissionTransaction) error {
	const query = `
	INSERT INTO commission_transactions (id, execution_id, user_id, amount, type, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.ExecutionID, tx.UserID, tx.Amount, tx.Type, tx.Status, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commission for execution %s already recorded: %w", tx.ExecutionID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert commission transaction for execution %s: %w", tx.ExecutionID, err)
	}
	r.logger.Debug(ctx, "Commission transaction created", map[string]interface{}{"executionID": tx.ExecutionID, "amount": tx.Amount})
	return nil
}

// FindCommissionTxByExecution retrieves the ledger entry for an execution.
func (r *Repository) FindCommissionTxByExecution(ctx context.Context, executionID string) (*domain.CommissionTransaction, error) {
	const query = `
	SELECT id, execution_id, user_id, amount, type, status, created_at
	FROM commission_transactions WHERE execution_id = ?`

	tx := &domain.CommissionTransaction{}
	var txType, status string
	err := r.db.QueryRowContext(ctx, query, executionID).Scan(
		&tx.ID, &tx.ExecutionID, &tx.UserID, &tx.Amount, &txType, &status, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query commission transaction for execution %s: %w", executionID, err)
	}
	tx.Type = domain.CommissionTxType(txType)
	tx.Status = domain.CommissionTxStatus(status)
	return tx, nil
}

// SumCommissionTx returns the sum of all committed transaction amounts.
func (r *Repository) SumCommissionTx(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM commission_transactions WHERE status = ?`
	var total float64
	if err := r.db.QueryRowContext(ctx, query, domain.CommissionConfirmed).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum commission transactions: %w", err)
	}
	return total, nil
}

// SumCommissionTxSince returns the sum of transaction amounts since the given time.
func (r *Repository) SumCommissionTxSince(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM commission_transactions WHERE status = ? AND created_at >= ?`
	var total float64
	if err := r.db.QueryRowContext(ctx, query, domain.CommissionConfirmed, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum commission transactions since %s: %w", since, err)
	}
	return total, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOrder scans a row into a domain.Order struct.
func scanOrder(s scanner) (*domain.Order, error) {
	o := &domain.Order{}
	var status string
	var side string
	var signalID sql.NullString
	var expiresAt sql.NullTime
	err := s.Scan(
		&o.ID, &o.UserID, &side, &o.Symbol, &o.Amount, &o.RequestedPrice,
		&status, &signalID, &o.Engine, &o.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	if signalID.Valid {
		o.SignalID = signalID.String
	}
	if expiresAt.Valid {
		o.ExpiresAt = expiresAt.Time
	}
	return o, nil
}

// scanExecution scans a row into a domain.TradeExecution struct.
func scanExecution(s scanner) (*domain.TradeExecution, error) {
	e := &domain.TradeExecution{}
	var status string
	var txSig sql.NullString
	var blockTime sql.NullTime
	err := s.Scan(
		&e.ID, &e.OrderID, &e.UserID, &e.InputMint, &e.OutputMint, &e.InputAmount,
		&e.ExpectedOutput, &e.ActualOutput, &e.Slippage, &e.Commission, &e.CommissionInPlatform,
		&txSig, &status, &e.ErrorMessage, &e.ReconcileRequired, &blockTime, &e.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	e.Status = domain.ExecutionStatus(status)
	if txSig.Valid {
		e.TxSignature = txSig.String
	}
	if blockTime.Valid {
		e.BlockTime = blockTime.Time
	}
	return e, nil
}
