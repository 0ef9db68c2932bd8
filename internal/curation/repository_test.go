package curation_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/curation"
)

type execCall struct {
	sql  string
	args []any
}

type stubRow struct {
	count int
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.count
	return nil
}

type stubDB struct {
	execs   []execCall
	execErr error
	row     stubRow
	queried []execCall
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), s.execErr
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.queried = append(s.queried, execCall{sql: sql, args: args})
	return s.row
}

func TestMigrate(t *testing.T) {
	db := &stubDB{}
	require.NoError(t, curation.NewRepository(db).Migrate(context.Background()))
	require.Len(t, db.execs, 1)
	require.Contains(t, db.execs[0].sql, "false_positives")
	require.Contains(t, db.execs[0].sql, "click_events")
}

func TestRecordFalsePositive(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	db := &stubDB{row: stubRow{count: 2}}
	repo := curation.NewRepository(db).WithClock(func() time.Time { return fixed })

	count, err := repo.RecordFalsePositive(context.Background(), "abc", "iPhone 12")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.True(t, strings.Contains(db.queried[0].sql, "ON CONFLICT"))
	require.Equal(t, []any{"abc", "iPhone 12", fixed}, db.queried[0].args)
}

func TestRecordFalsePositiveError(t *testing.T) {
	db := &stubDB{row: stubRow{err: errors.New("conn reset")}}
	_, err := curation.NewRepository(db).RecordFalsePositive(context.Background(), "abc", "x")
	require.ErrorContains(t, err, "conn reset")
}

func TestRecordClick(t *testing.T) {
	db := &stubDB{}
	id, err := curation.NewRepository(db).RecordClick(context.Background(), "radio", "Radio Grundig", "h1")
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	require.NoError(t, err)
	require.Len(t, db.execs, 1)
	require.Equal(t, "radio", db.execs[0].args[1])
	require.Equal(t, "h1", db.execs[0].args[3])
}

func TestRecordClickError(t *testing.T) {
	db := &stubDB{execErr: errors.New("boom")}
	_, err := curation.NewRepository(db).RecordClick(context.Background(), "q", "t", "h")
	require.Error(t, err)
}
