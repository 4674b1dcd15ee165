package database

import (
	"context"
	"testing"
	"time"
)

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: DriverSQLite, DSN: "  "}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenSQLiteInMemory(t *testing.T) {
	t.Parallel()

	db, err := Open(Config{
		Driver:      DriverSQLite,
		DSN:         "file:database_test?mode=memory&cache=shared",
		PingTimeout: time.Second,
		Debug:       true,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	var n int
	if err := db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n); err != nil {
		t.Fatalf("select 1: %v", err)
	}
	if n != 1 {
		t.Fatalf("select 1 = %d", n)
	}
	if got := db.Dialect().Name().String(); got != "sqlite" {
		t.Fatalf("dialect = %q, want sqlite", got)
	}
}
