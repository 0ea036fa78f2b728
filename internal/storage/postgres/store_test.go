package postgres

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"treasurySync/internal/storage"
)

func TestClassifyRowLevelErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		rejected bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505", Message: "duplicate key"}, rejected: true},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503", Message: "fk"}, rejected: true},
		{name: "check violation", err: &pgconn.PgError{Code: "23514", Message: "check"}, rejected: true},
		{name: "numeric out of range", err: &pgconn.PgError{Code: "22003", Message: "out of range"}, rejected: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01", Message: "terminating"}, rejected: false},
		{name: "plain error", err: errors.New("conn closed"), rejected: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if errors.Is(got, storage.ErrRecordRejected) != tc.rejected {
				t.Fatalf("classify(%v) rejected=%v, want %v", tc.err, !tc.rejected, tc.rejected)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, migrationsDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no migrations embedded")
	}

	data, err := fs.ReadFile(embedMigrations, migrationsDir+"/"+entries[0].Name())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(data)
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "UNIQUE (tx_hash, treasury_id, event_type)"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}
