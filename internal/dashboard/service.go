package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"loanbook/internal/platform/metrics"
	redisplatform "loanbook/internal/platform/redis"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
)

const summaryCacheKey = "loanbook:dashboard:summary"

// Service gathers the dashboard aggregates concurrently and caches the
// composed summary. A nil cache disables caching entirely.
type Service struct {
	store    Store
	cache    *redisplatform.Client
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(store Store, cache *redisplatform.Client, cacheTTL time.Duration, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("loanbook/dashboard"),
	}
}

// Summary returns the cached dashboard summary, rebuilding it on a miss.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.summary")
	defer span.End()

	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, summary)
	return summary, nil
}

// build fans the aggregate queries out and composes the result. Queries are
// independent, so a single errgroup round trip bounds latency to the slowest
// one.
func (s *Service) build(ctx context.Context) (*Summary, error) {
	summary := &Summary{GeneratedAt: time.Now()}
	today := date.Today()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.TotalOutstanding, err = s.store.TotalOutstanding(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.MonthlyObligation, err = s.store.MonthlyObligation(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.InterestPaidThisYear, err = s.store.InterestPaidInYear(ctx, today.Year())
		return err
	})
	g.Go(func() (err error) {
		summary.NextPayment, err = s.store.NextPaymentDue(ctx, today)
		return err
	})
	g.Go(func() (err error) {
		summary.Cards, err = s.store.LoanCards(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.PrincipalVsInterest, err = s.store.PrincipalVsInterest(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.Comparison, err = s.store.ComparisonRows(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.StatusCounts, err = s.store.PaymentStatusCounts(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dashboard aggregation failed")
	}

	if summary.Cards == nil {
		summary.Cards = []LoanCard{}
	}
	if summary.Comparison == nil {
		summary.Comparison = []ComparisonRow{}
	}
	return summary, nil
}

// Timeline returns the trailing payment activity buckets.
func (s *Service) Timeline(ctx context.Context, months int) ([]TimelineBucket, error) {
	if months < 1 || months > 120 {
		months = 12
	}
	buckets, err := s.store.Timeline(ctx, months)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "timeline aggregation failed")
	}
	if buckets == nil {
		buckets = []TimelineBucket{}
	}
	return buckets, nil
}

// Invalidate drops the cached summary. Called after any write.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, summaryCacheKey).Err(); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", "error", err)
	}
}

func (s *Service) fromCache(ctx context.Context) *Summary {
	if s.cache == nil {
		s.metrics.RecordDashboardCache("bypass")
		return nil
	}
	raw, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		s.metrics.RecordDashboardCache("miss")
		return nil
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.metrics.RecordDashboardCache("miss")
		return nil
	}
	s.metrics.RecordDashboardCache("hit")
	return &summary
}

func (s *Service) toCache(ctx context.Context, summary *Summary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summaryCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("dashboard cache write failed", "error", err)
	}
}

// InvalidationMiddleware drops the summary cache after every mutating request,
// regardless of outcome, so the next dashboard read reflects any write.
func (s *Service) InvalidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			s.Invalidate(r.Context())
		}
	})
}
