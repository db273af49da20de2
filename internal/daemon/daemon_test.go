package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"xsched/internal/mediastore"
	"xsched/internal/model"
	"xsched/internal/testutil"
	"xsched/internal/xs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDispatcher counts dispatch calls and can hold one open until released.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   int
	ctxErrs []error
	entered chan struct{}
	release chan struct{}
	stuck   []*model.Tweet
	err     error
}

func (f *fakeDispatcher) DispatchDue(ctx context.Context) (*xs.DispatchReport, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return &xs.DispatchReport{}, f.err
}

func (f *fakeDispatcher) StuckPosting() ([]*model.Tweet, error) {
	return f.stuck, nil
}

func (f *fakeDispatcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func lockPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "xsched.lock")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		d        Dispatcher
		lock     string
		interval time.Duration
	}{
		{"nil dispatcher", nil, "/tmp/x.lock", time.Second},
		{"zero interval", &fakeDispatcher{}, "/tmp/x.lock", 0},
		{"no lock path", &fakeDispatcher{}, "", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.d, xs.NewNopLogger(), tt.lock, tt.interval); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestDaemon_PollsUntilCancelled(t *testing.T) {
	disp := &fakeDispatcher{}
	ticks := make(chan time.Time)
	d, err := New(disp, xs.NewNopLogger(), lockPath(t), time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var waits []time.Duration
	d.WithAfter(func(dur time.Duration) <-chan time.Time {
		waits = append(waits, dur)
		return ticks
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()

	ticks <- time.Time{}
	ticks <- time.Time{}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := disp.Calls(); got != 3 {
		t.Errorf("dispatch calls = %d, want 3", got)
	}
	if d.Polls() != 3 {
		t.Errorf("Polls() = %d, want 3", d.Polls())
	}
	for _, w := range waits {
		if w != time.Minute {
			t.Errorf("waited %s, want 1m", w)
		}
	}
	if d.Running() {
		t.Error("Running() = true after Run returned")
	}
}

func TestDaemon_FinishesDispatchOnShutdown(t *testing.T) {
	disp := &fakeDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	d, err := New(disp, xs.NewNopLogger(), lockPath(t), time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.WithAfter(func(time.Duration) <-chan time.Time {
		t.Error("daemon waited for another poll after shutdown")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()

	<-disp.entered
	cancel()
	close(disp.release)

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if disp.Calls() != 1 {
		t.Errorf("dispatch calls = %d, want 1", disp.Calls())
	}
	if disp.ctxErrs[0] != nil {
		t.Errorf("dispatch context error = %v, want nil", disp.ctxErrs[0])
	}
}

func TestDaemon_SingleInstance(t *testing.T) {
	path := lockPath(t)
	first := &fakeDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	d1, _ := New(first, xs.NewNopLogger(), path, time.Minute)
	d2, _ := New(&fakeDispatcher{}, xs.NewNopLogger(), path, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d1.Run(ctx) }()
	<-first.entered

	if err := d2.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	close(first.release)
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// the lock is free again once the first daemon stops
	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	if err := d2.Run(ctx2); err != nil {
		t.Errorf("Run() after release error = %v", err)
	}
}

func TestDaemon_DispatchErrorDoesNotStopLoop(t *testing.T) {
	disp := &fakeDispatcher{err: xs.ErrNotAuthenticated}
	ticks := make(chan time.Time)
	d, _ := New(disp, xs.NewNopLogger(), lockPath(t), time.Second)
	d.WithAfter(func(time.Duration) <-chan time.Time { return ticks })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()
	ticks <- time.Time{}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if disp.Calls() != 2 {
		t.Errorf("dispatch calls = %d, want 2", disp.Calls())
	}
}

func TestDaemon_PollReturnsDispatchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"not authenticated", xs.ErrNotAuthenticated},
		{"store failure", xs.ErrStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(&fakeDispatcher{err: tt.err}, xs.NewNopLogger(), lockPath(t), time.Second)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			report, err := d.Poll(context.Background())
			if !errors.Is(err, tt.err) {
				t.Errorf("Poll() error = %v, want %v", err, tt.err)
			}
			if report == nil {
				t.Fatal("Poll() report = nil")
			}
			if got, want := xs.ExitCode(err), xs.ExitCode(tt.err); got != want {
				t.Errorf("ExitCode(Poll() error) = %d, want %d", got, want)
			}
			if d.Polls() != 1 {
				t.Errorf("Polls() = %d, want 1", d.Polls())
			}
		})
	}
}

func TestDaemon_PostsDueTweets(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	clock := testutil.FixedClock()
	poster := testutil.NewFakePoster()
	logger := xs.NewNopLogger()
	usage := xs.NewUsageTracker(db, logger, clock, time.UTC)
	hooks := xs.NewHookMatcher(db, logger, clock, xs.DefaultHookOptions())
	tweets := xs.NewTweetManager(db, hooks, usage, mediastore.NewMemoryStore(), poster, logger, clock, xs.LifecycleOptions{
		CharacterLimit: 280,
		PostTimes:      []string{"09:00"},
		Location:       time.UTC,
	})

	tw, err := tweets.Create("due in an hour", model.ContentCasual, xs.HookSelection{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := tweets.Schedule(tw.ID, clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	ticks := make(chan time.Time)
	d, _ := New(tweets, logger, lockPath(t), time.Minute)
	d.WithAfter(func(dur time.Duration) <-chan time.Time {
		clock.Advance(40 * time.Minute)
		return ticks
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()
	ticks <- time.Time{} // 40m: not yet due
	ticks <- time.Time{} // 80m: due
	ticks <- time.Time{} // 120m: already posted
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n := len(poster.Calls()); n != 1 {
		t.Fatalf("poster calls = %d, want 1", n)
	}
	got, err := tweets.Show(tw.ID)
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if got.Status != model.StatusPosted {
		t.Errorf("Status = %s, want posted", got.Status)
	}
}
