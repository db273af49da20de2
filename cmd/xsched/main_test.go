package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"xsched/internal/model"
	"xsched/internal/xs"
)

func TestParseWhen(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2024-01-16T09:00:00Z", time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)},
		{"local minutes", "2024-01-16 09:00", time.Date(2024, 1, 16, 9, 0, 0, 0, berlin)},
		{"local T separator", "2024-01-16T09:00", time.Date(2024, 1, 16, 9, 0, 0, 0, berlin)},
		{"offset", "+90m", now.Add(90 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhen(tt.input, now, berlin)
			if err != nil {
				t.Fatalf("parseWhen() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseWhen() = %v, want %v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "tomorrow", "+soon", "16/01/2024"} {
		if _, err := parseWhen(bad, now, berlin); !errors.Is(err, xs.ErrValidation) {
			t.Errorf("parseWhen(%q) error = %v, want ErrValidation", bad, err)
		}
	}
}

func TestParseVars(t *testing.T) {
	got, err := parseVars([]string{"topic=Go", " n =3", "empty="})
	if err != nil {
		t.Fatalf("parseVars() error = %v", err)
	}
	want := map[string]string{"topic": "Go", "n": "3", "empty": ""}
	if len(got) != len(want) {
		t.Fatalf("parseVars() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseVars()[%q] = %q, want %q", k, got[k], v)
		}
	}

	if got, err := parseVars(nil); err != nil || got != nil {
		t.Errorf("parseVars(nil) = %v, %v, want nil, nil", got, err)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); !errors.Is(err, xs.ErrValidation) {
			t.Errorf("parseVars(%q) error = %v, want ErrValidation", bad, err)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42", "tweet"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad, "tweet")
		if xs.ExitCode(err) != xs.ExitCode(xs.ErrValidation) {
			t.Errorf("parseID(%q) exit code = %d, want validation", bad, xs.ExitCode(err))
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 20, "line one line two"},
		{"héllo wörld", 6, "héllo…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Status"},
		[][]string{{"1", "draft"}, {"22"}},
		[]columnAlignment{alignRight},
	)
	for _, want := range []string{"ID", "Status", "draft", "22"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderTable() missing %q in:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("renderTable() with no headers should be empty")
	}
}

func TestHookSelection(t *testing.T) {
	reset := func() {
		createHookID, createCategory, createAutoHook, createVars = 0, "", false, nil
	}
	t.Cleanup(reset)

	t.Run("none", func(t *testing.T) {
		reset()
		sel, err := hookSelection()
		if err != nil {
			t.Fatalf("hookSelection() error = %v", err)
		}
		if sel.Mode != xs.HookNone {
			t.Errorf("Mode = %v, want HookNone", sel.Mode)
		}
	})

	t.Run("category", func(t *testing.T) {
		reset()
		createCategory = "question"
		sel, err := hookSelection()
		if err != nil {
			t.Fatalf("hookSelection() error = %v", err)
		}
		if sel.Mode != xs.HookByCategory || sel.Category.String() != "question" {
			t.Errorf("selection = %+v, want question category", sel)
		}
	})

	t.Run("conflicting modes", func(t *testing.T) {
		reset()
		createHookID, createAutoHook = 3, true
		if _, err := hookSelection(); !errors.Is(err, xs.ErrValidation) {
			t.Errorf("hookSelection() error = %v, want ErrValidation", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		reset()
		createCategory = "clickbait"
		if _, err := hookSelection(); !errors.Is(err, xs.ErrValidation) {
			t.Errorf("hookSelection() error = %v, want ErrValidation", err)
		}
	})
}

type stubTweets struct {
	postErr error
	stored  *model.Tweet
	shows   int
}

func (s *stubTweets) Post(ctx context.Context, id int64, opts xs.PostOptions) (*model.Tweet, error) {
	if s.postErr != nil {
		return nil, s.postErr
	}
	posted := *s.stored
	posted.Status = model.StatusPosted
	return &posted, nil
}

func (s *stubTweets) Show(id int64) (*model.Tweet, error) {
	s.shows++
	return s.stored, nil
}

func TestPostTweet(t *testing.T) {
	tests := []struct {
		name       string
		postErr    error
		wantStatus model.TweetStatus // empty means no tweet reported
		wantShows  int
	}{
		{"posted", nil, model.StatusPosted, 0},
		{"rejected by the platform", fmt.Errorf("%w: posting tweet: duplicate", xs.ErrCollaborator), model.StatusFailed, 1},
		{"credentials revoked mid-post", fmt.Errorf("%w: %w", xs.ErrCollaborator, xs.ErrNotAuthenticated), model.StatusFailed, 1},
		{"not eligible", fmt.Errorf("%w: tweet 7 is draft", xs.ErrInvalidState), "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTweets{
				postErr: tt.postErr,
				stored:  &model.Tweet{ID: 7, Status: model.StatusFailed, ErrorMessage: "duplicate"},
			}

			tweet, err := postTweet(context.Background(), stub, 7, false)
			if !errors.Is(err, tt.postErr) {
				t.Errorf("postTweet() error = %v, want %v", err, tt.postErr)
			}
			if stub.shows != tt.wantShows {
				t.Errorf("Show() calls = %d, want %d", stub.shows, tt.wantShows)
			}
			if tt.wantStatus == "" {
				if tweet != nil {
					t.Errorf("postTweet() tweet = %+v, want nil", tweet)
				}
				return
			}
			if tweet == nil || tweet.ID != 7 || tweet.Status != tt.wantStatus {
				t.Errorf("postTweet() tweet = %+v, want id 7 %s", tweet, tt.wantStatus)
			}
		})
	}
}
