package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"xsched/internal/xs"
)

// PostedCall records one call to FakePoster.Post.
type PostedCall struct {
	Text  string
	Media map[string][]byte // attachment name -> content
}

// FakePoster is an in-memory xs.Poster. Set Err to make posts fail,
// NotReady to simulate missing credentials, NoResult to return neither a
// result nor an error, or Block to hold every Post until the channel is closed.
type FakePoster struct {
	mu       sync.Mutex
	calls    []PostedCall
	Err      error
	NotReady bool
	NoResult bool
	Block    chan struct{}
	// Started receives once per Post call, before blocking, when non-nil.
	Started chan struct{}
}

// NewFakePoster creates a FakePoster that accepts every post.
func NewFakePoster() *FakePoster {
	return &FakePoster{}
}

func (p *FakePoster) Ready(ctx context.Context) error {
	if p.NotReady {
		return fmt.Errorf("%w: x credentials are not configured", xs.ErrNotAuthenticated)
	}
	return nil
}

func (p *FakePoster) Verify(ctx context.Context) (string, error) {
	if err := p.Ready(ctx); err != nil {
		return "", err
	}
	return "@tester", nil
}

func (p *FakePoster) Post(ctx context.Context, req xs.PostRequest) (*xs.PostResult, error) {
	call := PostedCall{Text: req.Text, Media: map[string][]byte{}}
	for _, m := range req.Media {
		data, err := io.ReadAll(m.Content)
		if err != nil {
			return nil, err
		}
		call.Media[m.Name] = data
	}

	if p.Started != nil {
		p.Started <- struct{}{}
	}
	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if p.Err != nil || p.NoResult {
		return nil, p.Err
	}
	n := len(p.calls)
	return &xs.PostResult{
		RemoteID: fmt.Sprintf("remote-%d", n),
		URL:      fmt.Sprintf("https://x.com/i/web/status/remote-%d", n),
	}, nil
}

// Calls returns a copy of the recorded Post calls.
func (p *FakePoster) Calls() []PostedCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PostedCall(nil), p.calls...)
}

// Compile-time check that FakePoster implements xs.Poster interface
var _ xs.Poster = (*FakePoster)(nil)
