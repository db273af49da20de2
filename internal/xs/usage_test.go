package xs_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"xsched/internal/testutil"
	"xsched/internal/xs"
)

func TestUsageTracker(t *testing.T) {
	t.Run("totals per period", func(t *testing.T) {
		f := newFixture(t)
		for _, cost := range []float64{0.04, 0.04, 2} {
			if _, err := f.usage.RecordCall("gemini", "image_generate", cost); err != nil {
				t.Fatalf("RecordCall() error = %v", err)
			}
		}
		f.clock.Advance(-48 * time.Hour)
		if _, err := f.usage.RecordCall("x", "tweet_create", 0); err != nil {
			t.Fatalf("RecordCall() error = %v", err)
		}
		f.clock.Advance(48 * time.Hour)

		tests := []struct {
			period xs.Period
			want   float64
		}{
			{xs.PeriodToday, 2.08},
			{xs.PeriodWeek, 2.08},
			{xs.PeriodAll, 2.08},
		}
		for _, tt := range tests {
			got, err := f.usage.TotalForPeriod(tt.period)
			if err != nil {
				t.Fatalf("TotalForPeriod(%s) error = %v", tt.period, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TotalForPeriod(%s) = %v, want %v", tt.period, got, tt.want)
			}
		}

		breakdown, err := f.usage.Breakdown(xs.PeriodWeek)
		if err != nil {
			t.Fatalf("Breakdown() error = %v", err)
		}
		calls := map[string]int{}
		for _, s := range breakdown {
			calls[s.APIName] = s.Calls
		}
		if calls["gemini"] != 3 || calls["x"] != 1 {
			t.Errorf("Breakdown() calls = %v, want gemini 3, x 1", calls)
		}
		today, _ := f.usage.Breakdown(xs.PeriodToday)
		if len(today) != 1 {
			t.Errorf("Breakdown(today) = %d apis, want 1", len(today))
		}
	})

	t.Run("rejects bad records", func(t *testing.T) {
		f := newFixture(t)
		for _, tc := range []struct {
			api, op string
			cost    float64
		}{
			{"", "image_generate", 1},
			{"gemini", " ", 1},
			{"gemini", "image_generate", -0.01},
		} {
			if _, err := f.usage.RecordCall(tc.api, tc.op, tc.cost); !errors.Is(err, xs.ErrValidation) {
				t.Errorf("RecordCall(%q, %q, %v) error = %v, want ErrValidation", tc.api, tc.op, tc.cost, err)
			}
		}
	})

	t.Run("month excludes last month", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Set(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
		if _, err := f.usage.RecordCall("gemini", "video_generate", 3); err != nil {
			t.Fatalf("RecordCall() error = %v", err)
		}
		f.clock.Set(time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))
		got, _ := f.usage.TotalForPeriod(xs.PeriodMonth)
		if got != 0 {
			t.Errorf("TotalForPeriod(month) = %v, want 0", got)
		}
	})
}

func TestUsageTracker_CheckBudget(t *testing.T) {
	f := newFixture(t)
	if _, err := f.usage.RecordCall("gemini", "image_generate", 10); err != nil {
		t.Fatalf("RecordCall() error = %v", err)
	}

	tests := []struct {
		limit         float64
		wantOver      bool
		wantRemaining float64
	}{
		{50, false, 40},
		{10, true, 0},
		{5, true, 0},
	}
	for _, tt := range tests {
		b, err := f.usage.CheckBudget(tt.limit)
		if err != nil {
			t.Fatalf("CheckBudget(%v) error = %v", tt.limit, err)
		}
		if b.Over != tt.wantOver || b.Remaining != tt.wantRemaining {
			t.Errorf("CheckBudget(%v) = %+v", tt.limit, b)
		}
		if tt.wantOver && !errors.Is(b.Err(), xs.ErrBudgetExceeded) {
			t.Errorf("Err() = %v, want ErrBudgetExceeded", b.Err())
		}
		if !tt.wantOver && b.Err() != nil {
			t.Errorf("Err() = %v, want nil", b.Err())
		}
	}

	b, _ := f.usage.CheckBudget(40)
	if b.PercentUsed() != 25 {
		t.Errorf("PercentUsed() = %v, want 25", b.PercentUsed())
	}
	if _, err := f.usage.CheckBudget(-1); !errors.Is(err, xs.ErrValidation) {
		t.Errorf("CheckBudget(-1) error = %v, want ErrValidation", err)
	}
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"today", "WEEK", " month ", "all"} {
		if _, err := xs.ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q) error = %v", s, err)
		}
	}
	if _, err := xs.ParsePeriod("year"); !errors.Is(err, xs.ErrValidation) {
		t.Errorf("ParsePeriod(year) error = %v, want ErrValidation", err)
	}
}

func TestPeriodStart(t *testing.T) {
	now := testutil.FixedClock().Now() // Monday 2024-01-15 10:30 UTC
	tests := []struct {
		period xs.Period
		want   time.Time
	}{
		{xs.PeriodToday, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{xs.PeriodWeek, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)},
		{xs.PeriodMonth, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{xs.PeriodAll, time.Time{}},
	}
	for _, tt := range tests {
		if got := xs.PeriodStart(tt.period, now, time.UTC); !got.Equal(tt.want) {
			t.Errorf("PeriodStart(%s) = %v, want %v", tt.period, got, tt.want)
		}
	}
}
