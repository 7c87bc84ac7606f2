package risk

import (
	"context"
	"errors"
	"math"
	"testing"

	"hydrabot/internal/domain"
)

type stubPortfolios struct {
	pf  *domain.Portfolio
	err error
}

func (s stubPortfolios) FindPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	return s.pf, s.err
}

func (s stubPortfolios) UpsertPortfolio(ctx context.Context, p *domain.Portfolio) error {
	return nil
}

func TestSizerNoPortfolio(t *testing.T) {
	s, err := NewSizer(stubPortfolios{}, 0.55, 0.1, 0.05)
	if err != nil {
		t.Fatalf("NewSizer: %v", err)
	}
	size, err := s.RecommendedSize(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecommendedSize: %v", err)
	}
	if size != 0 {
		t.Errorf("expected zero recommendation without a portfolio, got %f", size)
	}
}

func TestSizerMatchesKelly(t *testing.T) {
	pf := &domain.Portfolio{UserID: "user-1", TotalValue: 10000}
	s, err := NewSizer(stubPortfolios{pf: pf}, 0.55, 0.1, 0.05)
	if err != nil {
		t.Fatalf("NewSizer: %v", err)
	}
	size, err := s.RecommendedSize(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecommendedSize: %v", err)
	}
	want := KellySize(10000, 0.55, 0.1, 0.05)
	if math.Abs(size-want) > 1e-9 {
		t.Errorf("size = %f, want %f", size, want)
	}
	if size < 10000*0.01 || size > 10000*0.25 {
		t.Errorf("size %f outside the clamped Kelly range", size)
	}
}

func TestSizerPropagatesRepoError(t *testing.T) {
	repoErr := errors.New("db closed")
	s, err := NewSizer(stubPortfolios{err: repoErr}, 0.55, 0.1, 0.05)
	if err != nil {
		t.Fatalf("NewSizer: %v", err)
	}
	if _, err := s.RecommendedSize(context.Background(), "user-1"); !errors.Is(err, repoErr) {
		t.Errorf("expected wrapped repo error, got %v", err)
	}
}

func TestSizerRejectsBadWinRate(t *testing.T) {
	if _, err := NewSizer(stubPortfolios{}, 1.5, 0.1, 0.05); err == nil {
		t.Error("expected error for win rate above 1")
	}
}
