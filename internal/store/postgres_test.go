package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestUpdateMinutesStaleRevisionWritesNothing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minutes SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("min_1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.UpdateMinutes(context.Background(), Minutes{ID: "min_1", Revision: 4}, 3, &MinutesEvent{MinutesID: "min_1", Event: "submit"})
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMinutesAppendsEventInSameTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minutes SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO minutes_events").
		WithArgs(append([]driver.Value{"min_1", "approve", "pending_review", "approved"}, anyArgs(4)...)...).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event := &MinutesEvent{MinutesID: "min_1", Event: "approve", FromStatus: "pending_review", ToStatus: "approved", ActorName: "A"}
	if err := s.UpdateMinutes(context.Background(), Minutes{ID: "min_1", Status: "approved", Revision: 5}, 4, event); err != nil {
		t.Fatalf("UpdateMinutes: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMinutesMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minutes SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := s.UpdateMinutes(context.Background(), Minutes{ID: "min_x"}, 1, nil)
	if err == nil || errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInsertSignatureUniqueViolationMapsToConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO minutes_signatures").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := s.InsertSignature(context.Background(), MinutesSignature{ID: "sig_1", MinutesID: "min_1", SignedAt: time.Now()}, MinutesEvent{MinutesID: "min_1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertMinutesDuplicateMeeting(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO minutes").WithArgs(anyArgs(13)...).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := s.InsertMinutes(context.Background(), Minutes{ID: "min_2", MeetingID: "mtg_1"}, MinutesEvent{MinutesID: "min_2", Event: "created"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResolveCommentReportsAlreadyResolved(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minutes_comments").WithArgs("cmt_1", "noted", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	resolved, err := s.ResolveComment(context.Background(), "cmt_1", "noted", time.Now(), MinutesEvent{})
	if err != nil {
		t.Fatalf("ResolveComment: %v", err)
	}
	if resolved {
		t.Fatal("expected second resolution to report false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceRequiredSignersKeepsOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM meeting_signers").WithArgs("mtg_1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO meeting_signers").WithArgs("mtg_1", 0, "chairman", "A", "").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO meeting_signers").WithArgs("mtg_1", 1, "secretary", "B", "usr_b").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.ReplaceRequiredSigners(context.Background(), "mtg_1", []RequiredSigner{
		{Role: "chairman", Name: "A"},
		{Role: "secretary", Name: "B", UserID: "usr_b"},
	})
	if err != nil {
		t.Fatalf("ReplaceRequiredSigners: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetUserByEmailSplitsRoles(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("FROM users WHERE LOWER").WithArgs("b@ktda.example").WillReturnRows(
		sqlmock.NewRows([]string{"id", "display_name", "email", "password_hash", "signing_pin_hash", "roles", "created_at", "updated_at"}).
			AddRow("usr_b", "B", "b@ktda.example", "hash", "", "secretary, chairman", now, now),
	)

	user, err := s.GetUserByEmail(context.Background(), " b@ktda.example ")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if len(user.Roles) != 2 || user.Roles[0] != "secretary" || user.Roles[1] != "chairman" {
		t.Fatalf("unexpected roles: %v", user.Roles)
	}
}

func TestListMinutesEventsDecodesPayload(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("FROM minutes_events").WithArgs("min_1", 100).WillReturnRows(
		sqlmock.NewRows([]string{"id", "minutes_id", "event", "from_status", "to_status", "actor_id", "actor_name", "payload", "created_at"}).
			AddRow(1, "min_1", "request_revision", "pending_review", "revision_requested", "usr_a", "A", []byte(`{"revisionReason":"typo"}`), now),
	)

	events, err := s.ListMinutesEvents(context.Background(), "min_1", 0)
	if err != nil {
		t.Fatalf("ListMinutesEvents: %v", err)
	}
	if len(events) != 1 || events[0].Payload["revisionReason"] != "typo" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestListMinutesEventsRejectsCorruptPayload(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM minutes_events").WithArgs("min_1", 100).WillReturnRows(
		sqlmock.NewRows([]string{"id", "minutes_id", "event", "from_status", "to_status", "actor_id", "actor_name", "payload", "created_at"}).
			AddRow(7, "min_1", "approve", "pending_review", "approved", "usr_a", "A", []byte(`{"notes":`), time.Now()),
	)

	_, err := s.ListMinutesEvents(context.Background(), "min_1", 0)
	if err == nil {
		t.Fatal("expected decode error for corrupt payload")
	}
	if !strings.Contains(err.Error(), "event 7 payload") {
		t.Fatalf("unexpected error: %v", err)
	}
}
