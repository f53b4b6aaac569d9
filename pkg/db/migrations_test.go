package db

import (
	"os"
	"path/filepath"
	"testing"
)

const migrationsTestPrefix = "db:migrations_test"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("%s - failed to write %s: %v", migrationsTestPrefix, name, err)
		}
	}
}

func TestLoadMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"0002_add_route.sql": "ALTER TABLE session_messages ADD COLUMN route TEXT;",
		"0001_create.sql":    "CREATE TABLE sessions (thread_id TEXT);",
		"README.md":          "# Migrations",
		"0010_index.sql":     "CREATE INDEX idx ON sessions(thread_id);",
		"notes.txt":          "ignored",
	})
	if err := os.Mkdir(filepath.Join(dir, "archive.sql"), 0o755); err != nil {
		t.Fatalf("%s - mkdir failed: %v", migrationsTestPrefix, err)
	}

	got, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}

	want := []string{"0001_create.sql", "0002_add_route.sql", "0010_index.sql"}
	if len(got) != len(want) {
		t.Fatalf("%s - expected %d migrations, got %d", migrationsTestPrefix, len(want), len(got))
	}
	for i, m := range got {
		if m.Name != want[i] {
			t.Errorf("%s - migration[%d] = %s, want %s", migrationsTestPrefix, i, m.Name, want[i])
		}
	}
	if got[0].SQL != "CREATE TABLE sessions (thread_id TEXT);" {
		t.Errorf("%s - first migration content mismatch: %q", migrationsTestPrefix, got[0].SQL)
	}
}

func TestLoadMigrationFiles_EmptyDir(t *testing.T) {
	got, err := LoadMigrationFiles(t.TempDir())
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(got) != 0 {
		t.Errorf("%s - expected no migrations, got %d", migrationsTestPrefix, len(got))
	}
}

func TestLoadMigrationFiles_NonExistentDir(t *testing.T) {
	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Errorf("%s - expected error for non-existent directory", migrationsTestPrefix)
	}
}

func TestLoadMigrationFiles_RepoMigrations(t *testing.T) {
	got, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(got) == 0 || got[0].Name != "0001_create_sessions.sql" {
		t.Errorf("%s - unexpected repo migrations %+v", migrationsTestPrefix, got)
	}
}
