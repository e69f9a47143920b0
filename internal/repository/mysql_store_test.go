package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

var at = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func eventRow(id uint64, capacity int, version uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "host_user_id", "title", "capacity", "starts_at", "roster_version", "created_at"}).
		AddRow(id, 1000, "friday round", capacity, at.Add(48*time.Hour), version, at)
}

func TestLedgerApplyTxWritesSnapshot(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_balances (user_id, points, manner_score) VALUES (?, ?, ?)`)).
		WithArgs(7, 0, -30, -30).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT manner_score FROM user_balances WHERE user_id = ? FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"manner_score"}).AddRow(-25))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO manner_ledger (user_id, amount, reason, balance_after, created_at)`)).
		WithArgs(7, -30, "payment deadline missed", -25, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	entry, err := repo.ApplyTx(context.Background(), tx, 7, model.LedgerManner, -30, "payment deadline missed", at)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Equal(t, model.LedgerEntry{
		ID:           11,
		UserID:       7,
		Kind:         model.LedgerManner,
		Amount:       -30,
		Reason:       "payment deadline missed",
		BalanceAfter: -25,
		CreatedAt:    at,
	}, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRejectsUnknownKind(t *testing.T) {
	db, _ := newMock(t)
	_, err := NewLedgerRepo(db).History(context.Background(), 1, model.LedgerKind("karma"), 10)
	require.ErrorIs(t, err, ErrInvalidLedgerKind)
}

func TestLedgerBalanceWithoutRowIsZero(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, points, manner_score FROM user_balances WHERE user_id = ?`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "points", "manner_score"}))

	b, err := NewLedgerRepo(db).Balance(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, model.Balance{UserID: 3}, b)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantInsertDuplicateIsAlreadyJoined(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO participants`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-7' for key 'uq_participants_event_user'"})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	p := model.Participant{EventID: 1, UserID: 7, JoinedAt: at, PaymentStatus: model.PaymentPending}
	err = NewParticipantRepo(db).InsertTx(context.Background(), tx, &p)
	require.ErrorIs(t, err, ErrAlreadyJoined)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantPendingBeforeUsesStrictCutoff(t *testing.T) {
	db, mock := newMock(t)
	cutoff := at.Add(time.Minute)
	mock.ExpectQuery(`WHERE payment_status = \? AND joined_at < \?`).
		WithArgs("PENDING", cutoff, 500).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "joined_at", "payment_status"}).
			AddRow(4, 1, 7, at, "PENDING"))

	ps, err := NewParticipantRepo(db).PendingBefore(context.Background(), cutoff, 500)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	require.Equal(t, uint64(7), ps[0].UserID)
	require.True(t, ps[0].Pending())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotHoldCreateDuplicateIsHoldConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO slot_holds`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	h := model.Hold{EventID: 1, RoomNo: 1, SlotIndex: 2, HolderUserID: 3, Token: "tok", CreatedAt: at, ExpiresAt: at.Add(6 * time.Hour)}
	require.ErrorIs(t, NewSlotHoldRepo(db).CreateTx(context.Background(), tx, &h), ErrHoldConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInEventLocksEventAndCommits(t *testing.T) {
	db, mock := newMock(t)
	store := NewMySQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM events WHERE id = ? FOR UPDATE`)).
		WithArgs(1).
		WillReturnRows(eventRow(1, 8, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM participants WHERE event_id = ? AND user_id = ?`)).
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE events SET roster_version = roster_version + 1 WHERE id = ?`)).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InEvent(context.Background(), 1, func(tx EventTx) error {
		require.Equal(t, 8, tx.Event().Capacity)
		require.Equal(t, uint64(3), tx.Event().RosterVersion)
		removed, err := tx.DeleteParticipant(context.Background(), 7)
		if err != nil || !removed {
			return err
		}
		return tx.BumpVersion(context.Background())
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInEventRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	store := NewMySQLStore(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM events WHERE id = ? FOR UPDATE`)).
		WithArgs(1).
		WillReturnRows(eventRow(1, 8, 0))
	mock.ExpectRollback()

	err := store.InEvent(context.Background(), 1, func(EventTx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInEventUnknownEvent(t *testing.T) {
	db, mock := newMock(t)
	store := NewMySQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM events WHERE id = ? FOR UPDATE`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.InEvent(context.Background(), 9, func(EventTx) error {
		t.Fatal("fn must not run for a missing event")
		return nil
	})
	require.ErrorIs(t, err, ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreNowReadsDatabaseClock(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT UTC_TIMESTAMP(6)`)).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(at))

	now, err := NewMySQLStore(db).Now(context.Background())
	require.NoError(t, err)
	require.True(t, at.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInEventNowReadsClockAfterLock(t *testing.T) {
	db, mock := newMock(t)
	store := NewMySQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM events WHERE id = ? FOR UPDATE`)).
		WithArgs(1).
		WillReturnRows(eventRow(1, 8, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT UTC_TIMESTAMP(6)`)).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(at))
	mock.ExpectCommit()

	err := store.InEvent(context.Background(), 1, func(tx EventTx) error {
		now, err := tx.Now(context.Background())
		if err != nil {
			return err
		}
		require.True(t, at.Equal(now))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
