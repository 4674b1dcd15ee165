// Package storetest opens throwaway in-memory databases for package tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/money-tracker/pkg/database"
	storex "github.com/tanpawarit/money-tracker/tracker/store"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// New returns a migrated Store backed by a private in-memory SQLite database.
func New(t testing.TB, opts ...storex.Option) *storex.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", nameReplacer.Replace(t.Name()))
	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		DSN:         dsn,
		PingTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := storex.New(db, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
