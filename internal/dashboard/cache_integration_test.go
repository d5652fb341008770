//go:build integration

package dashboard_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbook/internal/dashboard"
	"loanbook/internal/loan"
	"loanbook/internal/payment"
	redisplatform "loanbook/internal/platform/redis"
	"loanbook/pkg/date"
	"loanbook/pkg/testutil/containers"
)

// The second Summary call must come from redis, so a write that bypasses
// Invalidate stays invisible until the cache is dropped.
func TestSummary_RedisCaching(t *testing.T) {
	rc := containers.NewRedisContainer(t).Client
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	loans := loan.NewInMemoryStore()
	payments := payment.NewInMemoryStore(loans)
	cache := &redisplatform.Client{Client: rc}
	svc := dashboard.NewService(dashboard.NewInMemoryStore(loans, payments), cache, time.Minute, nil, logger)

	_, err := loans.Create(ctx, &loan.Loan{
		Name:             "Home Loan",
		Type:             loan.TypeHome,
		BankName:         "HDFC",
		PrincipalAmount:  500000,
		SanctionedAmount: 500000,
		InterestRate:     8.5,
		RateType:         loan.RateFixed,
		TermMonths:       240,
		StartDate:        date.New(2024, 1, 1),
		EMIAmount:        4339,
		PaymentFrequency: loan.FrequencyMonthly,
		Status:           loan.StatusActive,
	})
	require.NoError(t, err)

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, first.TotalOutstanding)

	_, err = loans.Create(ctx, &loan.Loan{
		Name:             "Car Loan",
		Type:             loan.TypeAuto,
		BankName:         "ICICI",
		PrincipalAmount:  300000,
		SanctionedAmount: 300000,
		InterestRate:     10,
		RateType:         loan.RateFixed,
		TermMonths:       60,
		StartDate:        date.New(2024, 1, 1),
		EMIAmount:        6374,
		PaymentFrequency: loan.FrequencyMonthly,
		Status:           loan.StatusActive,
	})
	require.NoError(t, err)

	cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, cached.TotalOutstanding)

	svc.Invalidate(ctx)

	fresh, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800000.0, fresh.TotalOutstanding)
}
