package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestListMigrationsSortsSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"0001_a.sql", "0002_b.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestListRepositoryMigrations(t *testing.T) {
	got, err := listMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) == 0 || got[0] != "0001_create_users.sql" {
		t.Fatalf("unexpected migrations %v", got)
	}
}

func TestPendingMigrations(t *testing.T) {
	applied := map[string]struct{}{"0001_a.sql": {}}
	got := pendingMigrations([]string{"0001_a.sql", "0002_b.sql"}, applied)
	if !reflect.DeepEqual(got, []string{"0002_b.sql"}) {
		t.Fatalf("unexpected pending %v", got)
	}
}

func TestSeedFileName(t *testing.T) {
	if got := seedFileName("dev"); got != "dev_seed.sql" {
		t.Fatalf("unexpected seed file %q", got)
	}
	if got := seedFileName("custom.sql"); got != "custom.sql" {
		t.Fatalf("unexpected seed file %q", got)
	}
}

func TestMigrationBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		1:  100 * time.Millisecond,
		2:  200 * time.Millisecond,
		10: migrationMaxBackoff,
	}
	for attempt, want := range cases {
		if got := migrationBackoff(attempt); got != want {
			t.Fatalf("attempt %d: expected %v got %v", attempt, want, got)
		}
	}
}

func TestShouldRetryMigration(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("syntax error"), want: false},
		{err: context.DeadlineExceeded, want: true},
		{err: fmt.Errorf("commit: %w", pgx.ErrTxClosed), want: true},
		{err: &pgconn.PgError{Code: "40001"}, want: true},
		{err: &pgconn.PgError{Code: "42601"}, want: false},
	}
	for _, tc := range cases {
		if got := shouldRetryMigration(tc.err); got != tc.want {
			t.Fatalf("shouldRetryMigration(%v) = %v want %v", tc.err, got, tc.want)
		}
	}
}

func TestRunMigrationsRejectsUnknownCommand(t *testing.T) {
	if err := runMigrations(context.Background(), []string{"down"}); err == nil {
		t.Fatal("expected error for unsupported command")
	}
}
