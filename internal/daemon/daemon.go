// Package daemon runs the poll loop that posts scheduled tweets when they
// come due.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"xsched/internal/model"
	"xsched/internal/xs"
)

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another xsched daemon is already running")

// Dispatcher posts due tweets. *xs.TweetManager satisfies it.
type Dispatcher interface {
	DispatchDue(ctx context.Context) (*xs.DispatchReport, error)
	StuckPosting() ([]*model.Tweet, error)
}

// Daemon polls for due tweets at a fixed interval and enforces
// single-instance execution through a lock file.
type Daemon struct {
	dispatcher Dispatcher
	logger     xs.Logger
	interval   time.Duration
	lockPath   string
	lock       *flock.Flock
	after      func(time.Duration) <-chan time.Time

	running atomic.Bool
	polls   atomic.Int64
}

// New constructs a daemon. interval must be positive.
func New(dispatcher Dispatcher, logger xs.Logger, lockPath string, interval time.Duration) (*Daemon, error) {
	if dispatcher == nil || logger == nil {
		return nil, errors.New("daemon requires a dispatcher and a logger")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	if lockPath == "" {
		return nil, errors.New("daemon requires a lock path")
	}
	return &Daemon{
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		after:      time.After,
	}, nil
}

// WithAfter replaces the wait between polls.
func (d *Daemon) WithAfter(after func(time.Duration) <-chan time.Time) *Daemon {
	d.after = after
	return d
}

// Running reports whether Run is in progress.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Polls returns how many dispatch passes have completed.
func (d *Daemon) Polls() int64 {
	return d.polls.Load()
}

// Run holds the lock and polls until ctx is cancelled. A dispatch pass in
// progress when ctx is cancelled runs to completion before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", "error", err)
		}
	}()

	d.logger.Info("daemon started", "lock", d.lockPath, "interval", d.interval.String())
	d.reportStuck()

	for {
		// dispatch errors are logged by Poll; the next pass retries
		d.Poll(ctx)
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-d.after(d.interval):
			continue
		}
		break
	}

	d.logger.Info("daemon stopped", "polls", d.polls.Load())
	return nil
}

// Poll runs one dispatch pass. Cancelling ctx does not interrupt it. The
// report is never nil; it holds whatever the pass got through before err.
func (d *Daemon) Poll(ctx context.Context) (*xs.DispatchReport, error) {
	defer d.polls.Add(1)

	report, err := d.dispatcher.DispatchDue(context.WithoutCancel(ctx))
	if err != nil {
		d.logger.Error("dispatch failed", "kind", xs.Kind(err), "error", err)
	}
	if report == nil {
		report = &xs.DispatchReport{}
	}
	if n := len(report.Posted) + len(report.Failed) + len(report.Skipped); n > 0 {
		d.logger.Info("dispatch complete",
			"posted", len(report.Posted),
			"failed", len(report.Failed),
			"skipped", len(report.Skipped))
	} else {
		d.logger.Debug("nothing due")
	}
	return report, err
}

// reportStuck warns about tweets left in posting by an interrupted process.
// They need an operator decision, so they are never retried automatically.
func (d *Daemon) reportStuck() {
	stuck, err := d.dispatcher.StuckPosting()
	if err != nil {
		d.logger.Warn("failed to check for stuck tweets", "error", err)
		return
	}
	for _, t := range stuck {
		d.logger.Warn("tweet stuck in posting state", "id", t.ID, "since", t.UpdatedAt.Format(time.RFC3339))
	}
}
