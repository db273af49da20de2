package xs

import (
	"time"

	"xsched/internal/model"
)

// Stats is an activity and spend report for one period.
type Stats struct {
	Period    Period
	Since     time.Time
	Tweets    *model.TweetCounts
	Usage     []*model.UsageSummary
	TotalCost float64
	Budget    *BudgetStatus
}

// StatsService builds activity reports.
type StatsService struct {
	database Database
	usage    *UsageTracker
	budget   float64
}

// NewStatsService creates a StatsService reporting against monthlyBudget.
func NewStatsService(database Database, usage *UsageTracker, monthlyBudget float64) *StatsService {
	return &StatsService{database: database, usage: usage, budget: monthlyBudget}
}

// Report summarises tweets and spend since the start of period p.
func (s *StatsService) Report(p Period) (*Stats, error) {
	since := s.usage.Since(p)

	counts, err := s.database.CountTweets(since.UTC())
	if err != nil {
		return nil, storeError("counting tweets", err)
	}
	usage, err := s.usage.Breakdown(p)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, u := range usage {
		total += u.Cost
	}
	budget, err := s.usage.CheckBudget(s.budget)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Period:    p,
		Since:     since,
		Tweets:    counts,
		Usage:     usage,
		TotalCost: total,
		Budget:    budget,
	}, nil
}
