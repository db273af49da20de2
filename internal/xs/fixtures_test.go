package xs_test

import (
	"strings"
	"testing"
	"time"

	"xsched/internal/database"
	"xsched/internal/mediastore"
	"xsched/internal/model"
	"xsched/internal/testutil"
	"xsched/internal/xs"
)

// fixture wires the services against an in-memory database and fakes.
type fixture struct {
	db     *database.SQLiteDatabase
	clock  *testutil.StubClock
	poster *testutil.FakePoster
	gen    *testutil.FakeGenerator
	store  *mediastore.MemoryStore
	fsmgr  *testutil.MockFilesystemManager
	usage  *xs.UsageTracker
	hooks  *xs.HookMatcher
	tweets *xs.TweetManager
	media  *xs.MediaService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithBudget(t, xs.MediaOptions{MonthlyBudget: 50})
}

func newFixtureWithBudget(t *testing.T, mopts xs.MediaOptions) *fixture {
	t.Helper()
	f := &fixture{
		db:     testutil.NewTestDatabase(t),
		clock:  testutil.FixedClock(),
		poster: testutil.NewFakePoster(),
		gen:    testutil.NewFakeGenerator(0.04, 0.4),
		store:  mediastore.NewMemoryStore(),
		fsmgr:  testutil.NewMockFilesystemManager(),
	}
	logger := xs.NewNopLogger()
	f.usage = xs.NewUsageTracker(f.db, logger, f.clock, time.UTC)
	f.hooks = xs.NewHookMatcher(f.db, logger, f.clock, xs.DefaultHookOptions())
	f.tweets = xs.NewTweetManager(f.db, f.hooks, f.usage, f.store, f.poster, logger, f.clock, xs.LifecycleOptions{
		CharacterLimit: 280,
		PostTimes:      []string{"09:00", "17:00"},
		Location:       time.UTC,
	})
	f.media = xs.NewMediaService(f.db, f.store, f.fsmgr, f.usage, f.gen, f.gen, logger,
		testutil.NewStubIDGenerator(), f.clock, mopts)
	return f
}

func (f *fixture) draft(t *testing.T, content string) *model.Tweet {
	t.Helper()
	tweet, err := f.tweets.Create(content, model.ContentPersonal, xs.HookSelection{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return tweet
}

func (f *fixture) approved(t *testing.T, content string) *model.Tweet {
	t.Helper()
	tweet, err := f.tweets.Approve(f.draft(t, content).ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	return tweet
}

func (f *fixture) importHooks(t *testing.T, jsonBatch string) []int64 {
	t.Helper()
	report, err := f.hooks.Import(strings.NewReader(jsonBatch), xs.FormatJSON)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(report.Rejected) > 0 {
		t.Fatalf("Import() rejected %+v", report.Rejected)
	}
	return report.Imported
}

func (f *fixture) status(t *testing.T, id int64) model.TweetStatus {
	t.Helper()
	tweet, err := f.tweets.Show(id)
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	return tweet.Status
}
