package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func TestSqlitePath(t *testing.T) {
	cases := map[string]string{
		"":                   "apicredits.db",
		"apicredits":         "apicredits.db",
		":memory:":           ":memory:",
		"/tmp/x.db":          "/tmp/x.db",
		"file:test?mode=rwc": "file:test?mode=rwc",
	}
	for in, want := range cases {
		if got := sqlitePath(in); got != want {
			t.Fatalf("sqlitePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDialectRejectsUnknownType(t *testing.T) {
	if _, err := Dialect(Config{Type: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestOpenSqlite(t *testing.T) {
	conn, err := Open(Config{Type: TypeSQLite, Name: filepath.Join(t.TempDir(), "test.db"), MaxOpenConn: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	if err := conn.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("exec: %v", err)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: gorm.ErrDuplicatedKey, want: true},
		{err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{err: errors.New(`ERROR: duplicate key value violates unique constraint "ux_credit_grants_transaction_id"`), want: true},
		{err: errors.New("Error 1062: Duplicate entry"), want: true},
		{err: errors.New("UNIQUE constraint failed: credit_grants.transaction_id"), want: true},
		{err: errors.New("connection reset"), want: false},
	}
	for _, tc := range cases {
		if got := IsDuplicateKeyErr(tc.err); got != tc.want {
			t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
