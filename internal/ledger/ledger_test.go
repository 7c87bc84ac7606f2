package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockCommissionRepo replicates the version-checked pool semantics in memory.
type mockCommissionRepo struct {
	mu   sync.Mutex
	pool domain.CommissionPool
	txs  map[string]*domain.CommissionTransaction // keyed by executionID

	// forceConflicts fails the next N increments with ErrVersionConflict
	// regardless of version, to exercise retry exhaustion.
	forceConflicts int
}

func newMockCommissionRepo() *mockCommissionRepo {
	return &mockCommissionRepo{
		pool: domain.CommissionPool{ID: domain.CommissionPoolID, UpdatedAt: time.Now()},
		txs:  make(map[string]*domain.CommissionTransaction),
	}
}

func (m *mockCommissionRepo) GetPool(ctx context.Context) (*domain.CommissionPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.pool
	return &cp, nil
}

func (m *mockCommissionRepo) IncrementPool(ctx context.Context, commissionDelta, burnDelta, stakeDelta float64, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceConflicts > 0 {
		m.forceConflicts--
		return ports.ErrVersionConflict
	}
	if m.pool.Version != expectedVersion {
		return ports.ErrVersionConflict
	}
	m.pool.TotalCommissions += commissionDelta
	m.pool.PendingBurn += burnDelta
	m.pool.TotalStaked += stakeDelta
	m.pool.Version++
	return nil
}

func (m *mockCommissionRepo) CreateCommissionTx(ctx context.Context, tx *domain.CommissionTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.ExecutionID]; ok {
		return ports.ErrDuplicateEntry
	}
	cp := *tx
	m.txs[tx.ExecutionID] = &cp
	return nil
}

func (m *mockCommissionRepo) FindCommissionTxByExecution(ctx context.Context, executionID string) (*domain.CommissionTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs[executionID], nil
}

func (m *mockCommissionRepo) SumCommissionTx(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, tx := range m.txs {
		total += tx.Amount
	}
	return total, nil
}

func (m *mockCommissionRepo) SumCommissionTxSince(ctx context.Context, since time.Time) (float64, error) {
	return m.SumCommissionTx(ctx)
}

type mockConverter struct {
	rate float64
	err  error
}

func (c mockConverter) ConvertAmount(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (float64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return amount * c.rate, nil
}

func successfulExec(commission float64) *domain.TradeExecution {
	return &domain.TradeExecution{
		ID:           uuid.NewString(),
		OrderID:      uuid.NewString(),
		UserID:       "user-1",
		OutputMint:   "OtherMint",
		ActualOutput: commission / 0.015,
		Commission:   commission,
		Status:       domain.ExecutionSuccess,
		CreatedAt:    time.Now().UTC(),
	}
}

func newLedger(t *testing.T, repo ports.CommissionRepository, conv Converter) *Ledger {
	t.Helper()
	l, err := NewLedger(Config{
		Repo:           repo,
		Converter:      conv,
		Logger:         noopLogger{},
		PlatformMint:   "BoomMint",
		BurnPercentage: 0.5,
		MaxRetries:     5,
	})
	require.NoError(t, err)
	return l
}

func TestApply_RecordsTransactionAndIncrementsPool(t *testing.T) {
	repo := newMockCommissionRepo()
	l := newLedger(t, repo, mockConverter{rate: 2})

	exec := successfulExec(7.5)
	tx, err := l.Apply(context.Background(), exec)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.InDelta(t, 15.0, tx.Amount, 1e-9) // converted at 2x into the platform token
	assert.Equal(t, domain.CommissionConfirmed, tx.Status)

	pool, _ := repo.GetPool(context.Background())
	assert.InDelta(t, 15.0, pool.TotalCommissions, 1e-9)
	assert.InDelta(t, 7.5, pool.PendingBurn, 1e-9)
	assert.LessOrEqual(t, pool.PendingBurn, pool.TotalCommissions)
}

func TestApply_IdempotentPerExecution(t *testing.T) {
	repo := newMockCommissionRepo()
	l := newLedger(t, repo, mockConverter{rate: 1})

	exec := successfulExec(7.5)
	first, err := l.Apply(context.Background(), exec)
	require.NoError(t, err)

	second, err := l.Apply(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	pool, _ := repo.GetPool(context.Background())
	assert.InDelta(t, 7.5, pool.TotalCommissions, 1e-9, "pool incremented exactly once")
}

func TestApply_ConversionFailureFallsBackOneToOne(t *testing.T) {
	repo := newMockCommissionRepo()
	l := newLedger(t, repo, mockConverter{err: ports.ErrQuoteUnavailable})

	tx, err := l.Apply(context.Background(), successfulExec(7.5))
	require.NoError(t, err)
	assert.InDelta(t, 7.5, tx.Amount, 1e-9)
}

func TestApply_PlatformMintSkipsConversion(t *testing.T) {
	repo := newMockCommissionRepo()
	conv := mockConverter{rate: 99} // would distort the amount if called
	l := newLedger(t, repo, conv)

	exec := successfulExec(7.5)
	exec.OutputMint = "BoomMint"
	tx, err := l.Apply(context.Background(), exec)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, tx.Amount, 1e-9)
}

func TestApply_RetryExhaustionEscalatesLedgerConflict(t *testing.T) {
	repo := newMockCommissionRepo()
	repo.forceConflicts = 5
	l := newLedger(t, repo, mockConverter{rate: 1})

	tx, err := l.Apply(context.Background(), successfulExec(7.5))
	assert.True(t, errors.Is(err, ports.ErrLedgerConflict))
	// The transaction row stays as the marker of what needs manual repair.
	assert.NotNil(t, tx)
}

func TestApply_RejectsNonSuccessfulExecutions(t *testing.T) {
	repo := newMockCommissionRepo()
	l := newLedger(t, repo, mockConverter{rate: 1})

	failed := successfulExec(7.5)
	failed.Status = domain.ExecutionFailed
	_, err := l.Apply(context.Background(), failed)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))

	zero := successfulExec(0)
	_, err = l.Apply(context.Background(), zero)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
}

func TestApply_ConcurrentExecutionsConserveTotals(t *testing.T) {
	repo := newMockCommissionRepo()
	// A deep retry budget so contention alone cannot exhaust the loop; the
	// property under test is conservation, not the escalation bound.
	l, err := NewLedger(Config{
		Repo:           repo,
		Converter:      mockConverter{rate: 1},
		Logger:         noopLogger{},
		PlatformMint:   "BoomMint",
		BurnPercentage: 0.5,
		MaxRetries:     500,
	})
	require.NoError(t, err)
	ctx := context.Background()

	const n = 100
	perTrade := 7.5

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Apply(ctx, successfulExec(perTrade)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected apply failure: %v", err)
	}

	pool, _ := repo.GetPool(ctx)
	sum, _ := repo.SumCommissionTx(ctx)
	assert.InDelta(t, n*perTrade, pool.TotalCommissions, 1e-6)
	assert.InDelta(t, sum, pool.TotalCommissions, 1e-6, "pool total must equal the transaction sum")
	assert.LessOrEqual(t, pool.PendingBurn, pool.TotalCommissions+1e-9)
}
