package xs

import (
	"strings"
	"time"

	"xsched/internal/model"
)

// Period is a reporting window ending now.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	}
	return "", kindError(ErrValidation, "unknown period %q (want today, week, month or all)", s)
}

// PeriodStart returns the first instant of p containing now, in loc.
// The week covers today and the six days before it.
func PeriodStart(p Period, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	switch p {
	case PeriodToday:
		return midnight
	case PeriodWeek:
		return midnight.AddDate(0, 0, -6)
	case PeriodMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return time.Time{}
	}
}

// UsageTracker records API calls and their cost and checks spend against a budget.
type UsageTracker struct {
	database Database
	logger   Logger
	clock    Clock
	loc      *time.Location
}

// NewUsageTracker creates a UsageTracker. Periods are computed in loc.
func NewUsageTracker(database Database, logger Logger, clock Clock, loc *time.Location) *UsageTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageTracker{
		database: database,
		logger:   logger,
		clock:    clock,
		loc:      loc,
	}
}

// RecordCall appends one usage record.
func (u *UsageTracker) RecordCall(api, operation string, cost float64) (*model.UsageRecord, error) {
	if strings.TrimSpace(api) == "" || strings.TrimSpace(operation) == "" {
		return nil, kindError(ErrValidation, "api and operation are required")
	}
	if cost < 0 {
		return nil, kindError(ErrValidation, "cost %.4f is negative", cost)
	}
	rec, err := u.database.CreateUsageRecord(&model.UsageRecord{
		APIName:   api,
		Operation: operation,
		Cost:      cost,
		CreatedAt: u.clock.Now().UTC(),
	})
	if err != nil {
		return nil, storeError("recording api usage", err)
	}
	u.logger.Debug("api call recorded", "api", api, "operation", operation, "cost", cost)
	return rec, nil
}

// Since returns the start of period p as of now.
func (u *UsageTracker) Since(p Period) time.Time {
	return PeriodStart(p, u.clock.Now(), u.loc)
}

// TotalForPeriod sums the cost of calls made in period p.
func (u *UsageTracker) TotalForPeriod(p Period) (float64, error) {
	total, err := u.database.SumUsageCost(u.Since(p).UTC())
	if err != nil {
		return 0, storeError("summing api usage", err)
	}
	return total, nil
}

// Breakdown returns calls and cost per API for period p.
func (u *UsageTracker) Breakdown(p Period) ([]*model.UsageSummary, error) {
	summaries, err := u.database.SummarizeUsage(u.Since(p).UTC())
	if err != nil {
		return nil, storeError("summarizing api usage", err)
	}
	return summaries, nil
}

// BudgetStatus compares this month's spend to a limit.
type BudgetStatus struct {
	Spent     float64
	Limit     float64
	Remaining float64
	Over      bool
}

// Verdict is "ok" or "over-budget".
func (b *BudgetStatus) Verdict() string {
	if b.Over {
		return "over-budget"
	}
	return "ok"
}

// PercentUsed is the share of the limit already spent.
func (b *BudgetStatus) PercentUsed() float64 {
	if b.Limit <= 0 {
		return 100
	}
	return b.Spent / b.Limit * 100
}

// Err returns an ErrBudgetExceeded error when over budget, nil otherwise.
func (b *BudgetStatus) Err() error {
	if !b.Over {
		return nil
	}
	return kindError(ErrBudgetExceeded, "spent $%.2f of $%.2f this month", b.Spent, b.Limit)
}

// CheckBudget reports this month's spend against limit. It is advisory:
// nothing is blocked here.
func (u *UsageTracker) CheckBudget(limit float64) (*BudgetStatus, error) {
	if limit < 0 {
		return nil, kindError(ErrValidation, "budget limit %.2f is negative", limit)
	}
	spent, err := u.TotalForPeriod(PeriodMonth)
	if err != nil {
		return nil, err
	}
	remaining := limit - spent
	if remaining < 0 {
		remaining = 0
	}
	return &BudgetStatus{
		Spent:     spent,
		Limit:     limit,
		Remaining: remaining,
		Over:      spent >= limit,
	}, nil
}
