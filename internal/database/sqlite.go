package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"xsched/internal/database/migrations"
	"xsched/internal/model"
	"xsched/internal/xs"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase implements the xs.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// Connection options go in the DSN so that every pooled connection gets them.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=1&_busy_timeout=5000"
	if path != MemoryPath {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}

func changed(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Tweet operations

const tweetColumns = `id, content, content_type, status, scheduled_time, posted_time,
	remote_id, remote_url, error_message, retry_count, hook_id, created_at, updated_at`

func scanTweet(row rowScanner) (*model.Tweet, error) {
	var (
		t                   model.Tweet
		contentType, status string
		scheduled, posted   sql.NullTime
		hookID              sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Content, &contentType, &status, &scheduled, &posted,
		&t.RemoteID, &t.RemoteURL, &t.ErrorMessage, &t.RetryCount, &hookID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ContentType = model.ContentType(contentType)
	t.Status = model.TweetStatus(status)
	t.ScheduledTime = timePtr(scheduled)
	t.PostedTime = timePtr(posted)
	t.HookID = intPtr(hookID)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func scanTweets(rows *sql.Rows) ([]*model.Tweet, error) {
	defer rows.Close()
	var tweets []*model.Tweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}

func (s *SQLiteDatabase) CreateTweet(tweet *model.Tweet, usage *model.HookUsage) (*model.Tweet, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tweets (content, content_type, status, scheduled_time, hook_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tweet.Content, string(tweet.ContentType), string(tweet.Status), nullTime(tweet.ScheduledTime),
		nullInt(tweet.HookID), tweet.CreatedAt.UTC(), tweet.UpdatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting tweet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("inserting tweet: %w", err)
	}

	if usage != nil {
		usage.TweetID = id
		if _, err := insertHookUsage(ctx, tx, usage); err != nil {
			return nil, err
		}
	}

	created, err := scanTweet(tx.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reading created tweet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return created, nil
}

func (s *SQLiteDatabase) FindTweet(id int64) (*model.Tweet, error) {
	t, err := scanTweet(s.db.QueryRow(`SELECT `+tweetColumns+` FROM tweets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding tweet: %w", err)
	}
	return t, nil
}

func (s *SQLiteDatabase) ListTweets(filter model.TweetFilter) ([]*model.Tweet, error) {
	query := `SELECT ` + tweetColumns + ` FROM tweets`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY scheduled_time IS NULL, scheduled_time ASC, created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tweets: %w", err)
	}
	tweets, err := scanTweets(rows)
	if err != nil {
		return nil, fmt.Errorf("listing tweets: %w", err)
	}
	return tweets, nil
}

func (s *SQLiteDatabase) ListDueTweets(now time.Time, limit int) ([]*model.Tweet, error) {
	query := `SELECT ` + tweetColumns + ` FROM tweets
		WHERE status = 'scheduled' AND scheduled_time IS NOT NULL AND scheduled_time <= ?
		ORDER BY scheduled_time ASC, id ASC`
	args := []any{now.UTC()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing due tweets: %w", err)
	}
	tweets, err := scanTweets(rows)
	if err != nil {
		return nil, fmt.Errorf("listing due tweets: %w", err)
	}
	return tweets, nil
}

func (s *SQLiteDatabase) ApproveTweet(id int64, now time.Time) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE tweets SET status = 'approved', updated_at = ?
		WHERE id = ? AND status = 'draft'`, now.UTC(), id))
	if err != nil {
		return false, fmt.Errorf("approving tweet: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) ScheduleTweet(id int64, when time.Time, now time.Time) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE tweets SET status = 'scheduled', scheduled_time = ?, updated_at = ?
		WHERE id = ? AND status IN ('draft', 'approved')`, when.UTC(), now.UTC(), id))
	if err != nil {
		return false, fmt.Errorf("scheduling tweet: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) UpdateTweetContent(id int64, content string, now time.Time) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE tweets SET content = ?, status = 'draft', updated_at = ?
		WHERE id = ? AND status IN ('draft', 'approved', 'failed')`, content, now.UTC(), id))
	if err != nil {
		return false, fmt.Errorf("updating tweet content: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) ClaimTweet(claim xs.TweetClaim) (bool, error) {
	if len(claim.From) == 0 {
		return false, fmt.Errorf("claiming tweet: no source states")
	}
	query := `UPDATE tweets SET status = 'posting', updated_at = ?
		WHERE id = ? AND content = ? AND status IN (` + placeholders(len(claim.From)) + `)`
	args := []any{claim.Now.UTC(), claim.ID, claim.Content}
	for _, st := range claim.From {
		args = append(args, string(st))
	}
	if claim.DueBy != nil {
		query += ` AND scheduled_time IS NOT NULL AND scheduled_time <= ?`
		args = append(args, claim.DueBy.UTC())
	}

	ok, err := changed(s.db.Exec(query, args...))
	if err != nil {
		return false, fmt.Errorf("claiming tweet: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) CompleteTweet(id int64, postedAt time.Time, remoteID, remoteURL string) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE tweets
		SET status = 'posted', posted_time = ?, remote_id = ?, remote_url = ?, error_message = '', updated_at = ?
		WHERE id = ? AND status = 'posting' AND posted_time IS NULL`,
		postedAt.UTC(), remoteID, remoteURL, postedAt.UTC(), id))
	if err != nil {
		return false, fmt.Errorf("completing tweet: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) FailTweet(id int64, message string, now time.Time) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE tweets
		SET status = 'failed', error_message = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE id = ? AND status = 'posting'`, message, now.UTC(), id))
	if err != nil {
		return false, fmt.Errorf("failing tweet: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) ResetTweet(id int64, now time.Time) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE tweets
		SET status = 'draft', error_message = '', scheduled_time = NULL, updated_at = ?
		WHERE id = ? AND status = 'failed'`, now.UTC(), id))
	if err != nil {
		return false, fmt.Errorf("resetting tweet: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) DeleteTweet(id int64) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE tweet_id = ?`, id); err != nil {
		return fmt.Errorf("deleting tweet media: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tweets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting tweet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) CountTweets(since time.Time) (*model.TweetCounts, error) {
	var c model.TweetCounts
	since = since.UTC()
	err := s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'posted' AND posted_time >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' AND updated_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'scheduled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0)
		FROM tweets`, since, since, since).Scan(&c.Created, &c.Posted, &c.Failed, &c.Scheduled, &c.Drafts)
	if err != nil {
		return nil, fmt.Errorf("counting tweets: %w", err)
	}
	return &c, nil
}

// Hook template operations

const hookColumns = `id, pattern_type, custom_label, name, hook_text, example_tweet, separator,
	structure_notes, performance_metrics, tags, success_rate, avg_engagement_rate, source,
	created_at, updated_at`

func scanHook(row rowScanner) (*model.HookTemplate, error) {
	var (
		h             model.HookTemplate
		kind, label   string
		metrics, tags string
	)
	err := row.Scan(&h.ID, &kind, &label, &h.Name, &h.HookText, &h.ExampleTweet, &h.Separator,
		&h.StructureNotes, &metrics, &tags, &h.SuccessRate, &h.AvgEngagementRate, &h.Source,
		&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Category = model.HookCategory{Kind: model.CategoryKind(kind), Label: label}
	if err := json.Unmarshal([]byte(metrics), &h.PerformanceMetrics); err != nil {
		return nil, fmt.Errorf("decoding performance metrics of hook %d: %w", h.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &h.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of hook %d: %w", h.ID, err)
	}
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	return &h, nil
}

func (s *SQLiteDatabase) CreateHookTemplates(hooks []*model.HookTemplate) ([]int64, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hook_templates (pattern_type, custom_label, name, hook_text, example_tweet, separator,
			structure_notes, performance_metrics, tags, success_rate, avg_engagement_rate, source,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing hook insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(hooks))
	for _, h := range hooks {
		metrics := h.PerformanceMetrics
		if metrics == nil {
			metrics = map[string]float64{}
		}
		metricsJSON, err := json.Marshal(metrics)
		if err != nil {
			return nil, fmt.Errorf("encoding performance metrics: %w", err)
		}
		tags := h.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("encoding tags: %w", err)
		}

		res, err := stmt.ExecContext(ctx, string(h.Category.Kind), h.Category.Label, h.Name, h.HookText,
			h.ExampleTweet, h.Separator, h.StructureNotes, string(metricsJSON), string(tagsJSON),
			h.SuccessRate, h.AvgEngagementRate, h.Source, h.CreatedAt.UTC(), h.UpdatedAt.UTC())
		if err != nil {
			return nil, fmt.Errorf("inserting hook template %q: %w", h.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("inserting hook template %q: %w", h.Name, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ids, nil
}

func (s *SQLiteDatabase) FindHookTemplate(id int64) (*model.HookTemplate, error) {
	h, err := scanHook(s.db.QueryRow(`SELECT `+hookColumns+` FROM hook_templates WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding hook template: %w", err)
	}
	return h, nil
}

// ListHookTemplates filters by category in SQL and by tag in Go, since tags
// are stored as a JSON array.
func (s *SQLiteDatabase) ListHookTemplates(filter model.HookFilter) ([]*model.HookTemplate, error) {
	query := `SELECT ` + hookColumns + ` FROM hook_templates`
	var args []any
	if filter.Category != nil {
		query += ` WHERE pattern_type = ?`
		args = append(args, string(filter.Category.Kind))
		if filter.Category.Label != "" {
			query += ` AND custom_label = ?`
			args = append(args, filter.Category.Label)
		}
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing hook templates: %w", err)
	}
	defer rows.Close()

	tag := strings.ToLower(strings.TrimSpace(filter.Tag))
	var hooks []*model.HookTemplate
	for rows.Next() {
		h, err := scanHook(rows)
		if err != nil {
			return nil, fmt.Errorf("listing hook templates: %w", err)
		}
		if tag != "" && !hasTag(h, tag) {
			continue
		}
		hooks = append(hooks, h)
		if filter.Limit > 0 && len(hooks) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing hook templates: %w", err)
	}
	return hooks, nil
}

func hasTag(h *model.HookTemplate, tag string) bool {
	for _, t := range h.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

func (s *SQLiteDatabase) UpdateHookStats(id int64, successRate, avgEngagement float64, now time.Time) error {
	_, err := s.db.Exec(`
		UPDATE hook_templates SET success_rate = ?, avg_engagement_rate = ?, updated_at = ?
		WHERE id = ?`, successRate, avgEngagement, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating hook stats: %w", err)
	}
	return nil
}

// Hook usage operations

const usageColumns = `id, hook_id, tweet_id, adapted_content, performance_score,
	views, likes, reposts, replies, engagement_rate, used_at`

func scanHookUsage(row rowScanner) (*model.HookUsage, error) {
	var (
		u                 model.HookUsage
		score, engagement sql.NullFloat64
	)
	err := row.Scan(&u.ID, &u.HookID, &u.TweetID, &u.AdaptedContent, &score,
		&u.Views, &u.Likes, &u.Reposts, &u.Replies, &engagement, &u.UsedAt)
	if err != nil {
		return nil, err
	}
	u.PerformanceScore = floatPtr(score)
	u.EngagementRate = floatPtr(engagement)
	u.UsedAt = u.UsedAt.UTC()
	return &u, nil
}

func (s *SQLiteDatabase) queryHookUsages(query string, args ...any) ([]*model.HookUsage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []*model.HookUsage
	for rows.Next() {
		u, err := scanHookUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertHookUsage(ctx context.Context, db execer, u *model.HookUsage) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO hook_usage (hook_id, tweet_id, adapted_content, performance_score,
			views, likes, reposts, replies, engagement_rate, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.HookID, u.TweetID, u.AdaptedContent, nullFloat(u.PerformanceScore),
		u.Views, u.Likes, u.Reposts, u.Replies, nullFloat(u.EngagementRate), u.UsedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting hook usage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting hook usage: %w", err)
	}
	u.ID = id
	return id, nil
}

func (s *SQLiteDatabase) CreateHookUsage(usage *model.HookUsage) (*model.HookUsage, error) {
	id, err := insertHookUsage(context.Background(), s.db, usage)
	if err != nil {
		return nil, err
	}
	return s.FindHookUsage(id)
}

func (s *SQLiteDatabase) FindHookUsage(id int64) (*model.HookUsage, error) {
	u, err := scanHookUsage(s.db.QueryRow(`SELECT `+usageColumns+` FROM hook_usage WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding hook usage: %w", err)
	}
	return u, nil
}

func (s *SQLiteDatabase) ListHookUsages(hookID int64) ([]*model.HookUsage, error) {
	usages, err := s.queryHookUsages(`SELECT `+usageColumns+` FROM hook_usage WHERE hook_id = ? ORDER BY id ASC`, hookID)
	if err != nil {
		return nil, fmt.Errorf("listing hook usages: %w", err)
	}
	return usages, nil
}

func (s *SQLiteDatabase) ListHookUsagesForTweet(tweetID int64) ([]*model.HookUsage, error) {
	usages, err := s.queryHookUsages(`SELECT `+usageColumns+` FROM hook_usage WHERE tweet_id = ? ORDER BY id ASC`, tweetID)
	if err != nil {
		return nil, fmt.Errorf("listing hook usages for tweet: %w", err)
	}
	return usages, nil
}

func (s *SQLiteDatabase) ScoreHookUsage(usage *model.HookUsage) (bool, error) {
	ok, err := changed(s.db.Exec(`
		UPDATE hook_usage
		SET performance_score = ?, views = ?, likes = ?, reposts = ?, replies = ?, engagement_rate = ?
		WHERE id = ? AND performance_score IS NULL`,
		nullFloat(usage.PerformanceScore), usage.Views, usage.Likes, usage.Reposts, usage.Replies,
		nullFloat(usage.EngagementRate), usage.ID))
	if err != nil {
		return false, fmt.Errorf("scoring hook usage: %w", err)
	}
	return ok, nil
}

func (s *SQLiteDatabase) HookPerformance(limit int) ([]*model.HookPerformance, error) {
	query := `
		SELECT h.id, h.name, h.pattern_type, h.custom_label, AVG(u.performance_score), COUNT(u.id)
		FROM hook_templates h
		JOIN hook_usage u ON u.hook_id = h.id
		WHERE u.performance_score IS NOT NULL
		GROUP BY h.id
		ORDER BY AVG(u.performance_score) DESC, h.id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("computing hook performance: %w", err)
	}
	defer rows.Close()

	var perf []*model.HookPerformance
	for rows.Next() {
		var (
			p           model.HookPerformance
			kind, label string
		)
		if err := rows.Scan(&p.HookID, &p.Name, &kind, &label, &p.AvgScore, &p.ScoredUsages); err != nil {
			return nil, fmt.Errorf("computing hook performance: %w", err)
		}
		p.Category = model.HookCategory{Kind: model.CategoryKind(kind), Label: label}
		perf = append(perf, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("computing hook performance: %w", err)
	}
	return perf, nil
}

// Media operations

const mediaColumns = `id, tweet_id, file_path, kind, mime_type, generation_cost, prompt, created_at`

func scanMedia(row rowScanner) (*model.Media, error) {
	var (
		m       model.Media
		tweetID sql.NullInt64
		kind    string
	)
	err := row.Scan(&m.ID, &tweetID, &m.FilePath, &kind, &m.MIMEType, &m.GenerationCost, &m.Prompt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.TweetID = intPtr(tweetID)
	m.Kind = model.MediaKind(kind)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *SQLiteDatabase) CreateMedia(media *model.Media) (*model.Media, error) {
	res, err := s.db.Exec(`
		INSERT INTO media (tweet_id, file_path, kind, mime_type, generation_cost, prompt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullInt(media.TweetID), media.FilePath, string(media.Kind), media.MIMEType,
		media.GenerationCost, media.Prompt, media.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("creating media: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating media: %w", err)
	}
	return s.FindMedia(id)
}

func (s *SQLiteDatabase) FindMedia(id int64) (*model.Media, error) {
	m, err := scanMedia(s.db.QueryRow(`SELECT `+mediaColumns+` FROM media WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding media: %w", err)
	}
	return m, nil
}

func (s *SQLiteDatabase) ListMedia(tweetID *int64) ([]*model.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media`
	var args []any
	if tweetID != nil {
		query += ` WHERE tweet_id = ?`
		args = append(args, *tweetID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var media []*model.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("listing media: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}
	return media, nil
}

func (s *SQLiteDatabase) DeleteMedia(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM media WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}
	return nil
}

// API usage operations

func (s *SQLiteDatabase) CreateUsageRecord(record *model.UsageRecord) (*model.UsageRecord, error) {
	res, err := s.db.Exec(`
		INSERT INTO api_usage (api_name, operation, cost, created_at) VALUES (?, ?, ?, ?)`,
		record.APIName, record.Operation, record.Cost, record.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("creating usage record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating usage record: %w", err)
	}

	created := *record
	created.ID = id
	created.CreatedAt = record.CreatedAt.UTC()
	return &created, nil
}

func (s *SQLiteDatabase) SumUsageCost(since time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(cost), 0) FROM api_usage WHERE created_at >= ?`, since.UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing usage cost: %w", err)
	}
	return total, nil
}

func (s *SQLiteDatabase) SummarizeUsage(since time.Time) ([]*model.UsageSummary, error) {
	rows, err := s.db.Query(`
		SELECT api_name, COUNT(*), COALESCE(SUM(cost), 0)
		FROM api_usage
		WHERE created_at >= ?
		GROUP BY api_name
		ORDER BY api_name ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("summarizing usage: %w", err)
	}
	defer rows.Close()

	var summaries []*model.UsageSummary
	for rows.Next() {
		var u model.UsageSummary
		if err := rows.Scan(&u.APIName, &u.Calls, &u.Cost); err != nil {
			return nil, fmt.Errorf("summarizing usage: %w", err)
		}
		summaries = append(summaries, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarizing usage: %w", err)
	}
	return summaries, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements xs.Database interface
var _ xs.Database = (*SQLiteDatabase)(nil)
