package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"tweets", "hook_templates", "hook_usage", "media", "api_usage", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckDBMigrationStatus(db)
	if !errors.Is(err, ErrNeedsMigration) {
		t.Errorf("CheckDBMigrationStatus() error = %v, want %v", err, ErrNeedsMigration)
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}

	version, err := Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if version != latest {
		t.Errorf("Version() = %d, want %d", version, latest)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_MediaCascadesWithTweet(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	mustExec(t, db, `INSERT INTO tweets (id, content, created_at, updated_at) VALUES (1, 'hello', datetime('now'), datetime('now'))`)
	mustExec(t, db, `INSERT INTO media (tweet_id, file_path, kind, created_at) VALUES (1, 'images/a.png', 'image', datetime('now'))`)
	mustExec(t, db, `DELETE FROM tweets WHERE id = 1`)

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM media`).Scan(&n); err != nil {
		t.Fatalf("counting media: %v", err)
	}
	if n != 0 {
		t.Errorf("media rows after tweet delete = %d, want 0", n)
	}
}

func TestSchema_HookUsageSurvivesTweetDelete(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	mustExec(t, db, `INSERT INTO hook_templates (id, pattern_type, name, hook_text, created_at, updated_at)
		VALUES (1, 'shock', 'shock hook', 'HOLY SH*T..', datetime('now'), datetime('now'))`)
	mustExec(t, db, `INSERT INTO tweets (id, content, hook_id, created_at, updated_at) VALUES (7, 'x', 1, datetime('now'), datetime('now'))`)
	mustExec(t, db, `INSERT INTO hook_usage (hook_id, tweet_id, adapted_content, used_at) VALUES (1, 7, 'x', datetime('now'))`)
	mustExec(t, db, `DELETE FROM tweets WHERE id = 7`)

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM hook_usage WHERE tweet_id = 7`).Scan(&n); err != nil {
		t.Fatalf("counting hook usage: %v", err)
	}
	if n != 1 {
		t.Errorf("hook usage rows after tweet delete = %d, want 1", n)
	}
}

func TestSchema_Constraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"negative api cost", `INSERT INTO api_usage (api_name, operation, cost, created_at) VALUES ('gemini', 'image_generate', -1, datetime('now'))`},
		{"unknown tweet status", `INSERT INTO tweets (content, status, created_at, updated_at) VALUES ('x', 'lost', datetime('now'), datetime('now'))`},
		{"usage of missing hook", `INSERT INTO hook_usage (hook_id, tweet_id, adapted_content, used_at) VALUES (99, 1, 'x', datetime('now'))`},
		{"media for missing tweet", `INSERT INTO media (tweet_id, file_path, kind, created_at) VALUES (99, 'a.png', 'image', datetime('now'))`},
		{"unknown media kind", `INSERT INTO media (file_path, kind, created_at) VALUES ('a.png', 'audio', datetime('now'))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.Exec(tt.query); err == nil {
				t.Errorf("insert succeeded, want constraint violation")
			}
		})
	}
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=1")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	return db
}
