package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"loanbook/internal/audit"
	"loanbook/internal/loan"
	"loanbook/internal/payment"
	"loanbook/internal/platform/metrics"
	"loanbook/internal/platform/middleware"
	"loanbook/internal/schedule"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
	"loanbook/pkg/money"
	"loanbook/pkg/platform/sentinel"
)

// LoanSource exposes the loan data projections start from.
type LoanSource interface {
	GetByID(ctx context.Context, loanID int64) (*loan.Loan, error)
	ListRateChanges(ctx context.Context, loanID int64) ([]*loan.RateChange, error)
}

// PaymentSource exposes payment history for baseline derivation.
type PaymentSource interface {
	ListByLoan(ctx context.Context, loanID int64) ([]*payment.Payment, error)
}

// Service computes prepayment projections and manages saved scenarios.
type Service struct {
	store    Store
	loans    LoanSource
	payments PaymentSource
	audit    *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(store Store, loans LoanSource, payments PaymentSource, pub *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		loans:    loans,
		payments: payments,
		audit:    pub,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("loanbook/forecast"),
	}
}

// baseline captures the loan's live position: what remains to be paid if
// nothing changes.
type baseline struct {
	loan        *loan.Loan
	outstanding float64
	remaining   int
	asOf        date.Date
}

func (b baseline) terms() schedule.Terms {
	return schedule.Terms{
		Principal:        b.outstanding,
		AnnualRate:       b.loan.InterestRate,
		TenureMonths:     b.remaining,
		EMI:              b.loan.EMIAmount,
		StartDate:        b.asOf.Time,
		PaymentFrequency: string(b.loan.PaymentFrequency),
	}
}

// currentBaseline derives the outstanding balance from the latest PAID payment
// and the remaining tenure from the count of settled EMIs.
func (s *Service) currentBaseline(ctx context.Context, loanID int64) (baseline, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return baseline{}, translate(err)
	}
	payments, err := s.payments.ListByLoan(ctx, loanID)
	if err != nil {
		return baseline{}, translate(err)
	}

	outstanding := l.PrincipalAmount
	paidEMIs := 0
	for _, p := range payments {
		if p.Status != payment.StatusPaid {
			continue
		}
		outstanding = p.BalanceRemaining
		if p.Type == payment.TypeEMI {
			paidEMIs++
		}
	}

	remaining := l.TermMonths - paidEMIs*schedule.FrequencyMonths(string(l.PaymentFrequency))
	if remaining < 1 {
		remaining = 1
	}
	return baseline{loan: l, outstanding: outstanding, remaining: remaining, asOf: date.Today()}, nil
}

// Compute runs one ad-hoc scenario against the loan's current position.
func (s *Service) Compute(ctx context.Context, loanID int64, req *ComputeRequest) (*Projection, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.compute",
		trace.WithAttributes(
			attribute.Int64("loan.id", loanID),
			attribute.String("prepayment.type", string(req.PrepaymentType)),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	base, err := s.currentBaseline(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.project(base, req, true), nil
}

// project runs a request against a baseline. Pure; all data is already loaded.
func (s *Service) project(base baseline, req *ComputeRequest, includeEntries bool) *Projection {
	start := time.Now()
	terms := base.terms()

	baseEntries := terms.Standard()
	baseSummary := schedule.Summarize(baseEntries, terms.Principal)

	var modEntries []schedule.Entry
	switch req.PrepaymentType {
	case PrepaymentLumpsum:
		month := req.StartMonth
		if month < 1 {
			month = 1
		}
		modEntries = terms.WithPrepayments(map[int]float64{month: req.PrepaymentValue})
	case PrepaymentRecurringPercent:
		month := req.StartMonth
		if month < 1 {
			month = 1
		}
		modEntries = terms.WithEMIIncrease(req.PrepaymentValue, month)
	default:
		modEntries = terms.WithPrepayments(req.Prepayments)
	}
	modSummary := schedule.Summarize(modEntries, terms.Principal)

	s.metrics.ObserveScheduleDuration(time.Since(start))

	proj := &Projection{
		Baseline: baseSummary,
		Modified: modSummary,
		Savings:  savings(base, baseSummary, modSummary),
	}
	if includeEntries {
		proj.Entries = modEntries
	}
	return proj
}

func savings(base baseline, b, m schedule.Summary) Savings {
	out := Savings{
		InterestSaved:    money.Round(b.TotalInterest - m.TotalInterest),
		MonthsSaved:      b.ActualTenure - m.ActualTenure,
		BaselineClosure:  base.asOf.AddMonths(b.ActualTenure),
		ProjectedClosure: base.asOf.AddMonths(m.ActualTenure),
	}
	if b.TotalInterest > 0 {
		out.InterestSavedPercent = money.Round(out.InterestSaved / b.TotalInterest * 100)
	}
	if b.ActualTenure > 0 {
		out.TenureReducedPercent = money.Round(float64(out.MonthsSaved) / float64(b.ActualTenure) * 100)
	}
	return out
}

// Save persists a scenario, capped at MaxScenariosPerLoan per loan.
func (s *Service) Save(ctx context.Context, sc *Scenario) (*Scenario, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.loans.GetByID(ctx, sc.LoanID); err != nil {
		return nil, translate(err)
	}
	count, err := s.store.CountByLoan(ctx, sc.LoanID)
	if err != nil {
		return nil, translate(err)
	}
	if count >= MaxScenariosPerLoan {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"loan already has %d scenarios; delete one first", MaxScenariosPerLoan)
	}
	if _, err := s.store.Create(ctx, sc); err != nil {
		return nil, translate(err)
	}

	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionScenarioSaved,
		Entity:    "scenario",
		EntityID:  sc.ID,
		LoanID:    sc.LoanID,
		RequestID: middleware.GetRequestID(ctx),
		Details:   fmt.Sprintf("name=%s type=%s value=%.2f", sc.Name, sc.PrepaymentType, sc.PrepaymentValue),
	})
	return sc, nil
}

// ListComputed returns the loan's saved scenarios, each recomputed against the
// current baseline.
func (s *Service) ListComputed(ctx context.Context, loanID int64) ([]*Projection, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.list_computed",
		trace.WithAttributes(attribute.Int64("loan.id", loanID)))
	defer span.End()

	base, err := s.currentBaseline(ctx, loanID)
	if err != nil {
		return nil, err
	}
	scenarios, err := s.store.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, translate(err)
	}

	out := make([]*Projection, 0, len(scenarios))
	for _, sc := range scenarios {
		req := &ComputeRequest{
			PrepaymentType:  sc.PrepaymentType,
			PrepaymentValue: sc.PrepaymentValue,
			StartMonth:      sc.StartMonth,
		}
		proj := s.project(base, req, false)
		proj.Scenario = sc
		out = append(out, proj)
	}
	return out, nil
}

// Delete removes a saved scenario.
func (s *Service) Delete(ctx context.Context, scenarioID int64) error {
	sc, err := s.store.GetByID(ctx, scenarioID)
	if err != nil {
		return translate(err)
	}
	if err := s.store.Delete(ctx, scenarioID); err != nil {
		return translate(err)
	}
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionScenarioDeleted,
		Entity:    "scenario",
		EntityID:  scenarioID,
		LoanID:    sc.LoanID,
		RequestID: middleware.GetRequestID(ctx),
	})
	return nil
}

// OptimalMonth sweeps a lumpsum over the horizon and ranks each candidate
// month by interest saved. Earlier is mathematically always better for a fixed
// amount; the sweep quantifies how much timing costs.
func (s *Service) OptimalMonth(ctx context.Context, loanID int64, amount float64, horizonMonths int) (*OptimalResult, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.optimal_month",
		trace.WithAttributes(attribute.Int64("loan.id", loanID), attribute.Float64("amount", amount)))
	defer span.End()

	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if horizonMonths < 1 {
		horizonMonths = 12
	}

	base, err := s.currentBaseline(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if horizonMonths > base.remaining {
		horizonMonths = base.remaining
	}

	result := &OptimalResult{Amount: amount}
	for month := 1; month <= horizonMonths; month++ {
		proj := s.project(base, &ComputeRequest{
			PrepaymentType:  PrepaymentLumpsum,
			PrepaymentValue: amount,
			StartMonth:      month,
		}, false)
		opt := MonthOption{
			Month:         month,
			InterestSaved: proj.Savings.InterestSaved,
			MonthsSaved:   proj.Savings.MonthsSaved,
		}
		result.Options = append(result.Options, opt)
		if opt.InterestSaved > result.BestSavings {
			result.BestSavings = opt.InterestSaved
			result.BestMonth = month
		}
	}
	return result, nil
}

// Breakeven binary-searches the smallest lumpsum at the given month that saves
// at least the target number of months.
func (s *Service) Breakeven(ctx context.Context, loanID int64, targetMonthsSaved, month int) (*BreakevenResult, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.breakeven",
		trace.WithAttributes(attribute.Int64("loan.id", loanID), attribute.Int("target.months", targetMonthsSaved)))
	defer span.End()

	if targetMonthsSaved < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "target_months must be positive")
	}
	if month < 1 {
		month = 1
	}

	base, err := s.currentBaseline(ctx, loanID)
	if err != nil {
		return nil, err
	}

	monthsSavedAt := func(amount float64) (int, float64) {
		proj := s.project(base, &ComputeRequest{
			PrepaymentType:  PrepaymentLumpsum,
			PrepaymentValue: amount,
			StartMonth:      month,
		}, false)
		return proj.Savings.MonthsSaved, proj.Savings.InterestSaved
	}

	result := &BreakevenResult{TargetMonthsSaved: targetMonthsSaved, Month: month}

	maxSaved, _ := monthsSavedAt(base.outstanding)
	if maxSaved < targetMonthsSaved {
		return result, nil
	}

	lo, hi := 0.0, base.outstanding
	for i := 0; i < 40 && hi-lo > 1; i++ {
		mid := (lo + hi) / 2
		if saved, _ := monthsSavedAt(mid); saved >= targetMonthsSaved {
			hi = mid
		} else {
			lo = mid
		}
	}

	saved, interestSaved := monthsSavedAt(hi)
	result.Amount = money.Round(hi)
	result.MonthsSaved = saved
	result.InterestSaved = interestSaved
	result.Achievable = true
	return result, nil
}

// BuildSchedule generates the loan's amortization schedule. Floating loans
// replay their recorded rate history.
func (s *Service) BuildSchedule(ctx context.Context, loanID int64) ([]schedule.Entry, schedule.Summary, error) {
	start := time.Now()
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, schedule.Summary{}, translate(err)
	}

	terms := schedule.Terms{
		Principal:        l.PrincipalAmount,
		AnnualRate:       l.InterestRate,
		TenureMonths:     l.TermMonths,
		EMI:              l.EMIAmount,
		StartDate:        l.StartDate.Time,
		PaymentFrequency: string(l.PaymentFrequency),
	}

	var entries []schedule.Entry
	if l.RateType == loan.RateFloating {
		history, err := s.loans.ListRateChanges(ctx, loanID)
		if err != nil {
			return nil, schedule.Summary{}, translate(err)
		}
		changes := make([]schedule.RateChange, 0, len(history))
		for _, rc := range history {
			month := date.MonthsBetween(l.StartDate, rc.EffectiveDate)
			if month < 1 {
				month = 1
			}
			changes = append(changes, schedule.RateChange{Month: month, NewRate: rc.InterestRate})
		}
		entries = terms.WithRateChanges(changes)
	} else {
		entries = terms.Standard()
	}

	s.metrics.ObserveScheduleDuration(time.Since(start))
	return entries, schedule.Summarize(entries, terms.Principal), nil
}

// Stats summarizes a loan's payment history and progress.
type Stats struct {
	LoanID            int64     `json:"loan_id"`
	Outstanding       float64   `json:"outstanding"`
	PrincipalPaid     float64   `json:"principal_paid"`
	InterestPaid      float64   `json:"interest_paid"`
	ChargesPaid       float64   `json:"charges_paid"`
	TotalPaid         float64   `json:"total_paid"`
	PrepaymentTotal   float64   `json:"prepayment_total"`
	ProgressPercent   float64   `json:"progress_percent"`
	PaidCount         int       `json:"paid_count"`
	PendingCount      int       `json:"pending_count"`
	MissedCount       int       `json:"missed_count"`
	RemainingTenure   int       `json:"remaining_tenure"`
	ProjectedClosure  date.Date `json:"projected_closure"`
	NextScheduledDate date.Date `json:"next_scheduled_date"`
	LatestPaymentDate date.Date `json:"latest_payment_date"`
}

// LoanStats aggregates payment history into per-loan statistics.
func (s *Service) LoanStats(ctx context.Context, loanID int64) (*Stats, error) {
	base, err := s.currentBaseline(ctx, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, translate(err)
	}

	stats := &Stats{
		LoanID:           loanID,
		Outstanding:      money.Round(base.outstanding),
		RemainingTenure:  base.remaining,
		ProjectedClosure: base.asOf.AddMonths(base.remaining),
	}
	today := date.Today()
	for _, p := range payments {
		switch p.Status {
		case payment.StatusPaid:
			stats.PaidCount++
			stats.PrincipalPaid += p.PrincipalComponent
			stats.InterestPaid += p.InterestComponent
			stats.ChargesPaid += p.Charges
			stats.TotalPaid += p.TotalAmount
			if p.Type == payment.TypePrepayment || p.Type == payment.TypePartial {
				stats.PrepaymentTotal += p.PrincipalComponent
			}
			stats.LatestPaymentDate = p.PaymentDate
		case payment.StatusPending:
			stats.PendingCount++
			if !p.ScheduledDate.Before(today.Time) && (stats.NextScheduledDate.IsZero() || p.ScheduledDate.Before(stats.NextScheduledDate.Time)) {
				stats.NextScheduledDate = p.ScheduledDate
			}
		case payment.StatusMissed:
			stats.MissedCount++
		}
	}

	if base.loan.PrincipalAmount > 0 {
		stats.ProgressPercent = money.Round((base.loan.PrincipalAmount - base.outstanding) / base.loan.PrincipalAmount * 100)
	}
	stats.PrincipalPaid = money.Round(stats.PrincipalPaid)
	stats.InterestPaid = money.Round(stats.InterestPaid)
	stats.ChargesPaid = money.Round(stats.ChargesPaid)
	stats.TotalPaid = money.Round(stats.TotalPaid)
	stats.PrepaymentTotal = money.Round(stats.PrepaymentTotal)
	return stats, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrForeignKey):
		return dErrors.New(dErrors.CodeNotFound, "loan not found")
	case errors.Is(err, sentinel.ErrCheckViolation):
		return dErrors.New(dErrors.CodeValidation, "storage constraint violated")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
}
