package access

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestPGCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into access_grants").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	g := &Grant{ID: "01J", Code: "ABCD2345", PatientID: "p1", PatientName: "Jane Doe",
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(24 * time.Hour)}
	if err := store.Create(context.Background(), g); !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGConsumeConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update access_grants set used=true where code=\$1 and used=false`).
		WithArgs("ABCD2345").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.Consume(context.Background(), "ABCD2345")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec(`update access_grants set used=true where code=\$1 and used=false`).
		WithArgs("ABCD2345").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.Consume(context.Background(), "ABCD2345")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("consume of a used code must report false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGFindByCodeNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select .* from access_grants where code=").
		WithArgs("MISSING1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "patient_id", "patient_name", "created_at", "expires_at", "used"}))

	if _, err := store.FindByCode(context.Background(), "MISSING1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGListByPatient(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "code", "patient_id", "patient_name", "created_at", "expires_at", "used"}).
		AddRow("02", "BBBB2345", "p1", "Jane Doe", now, now.Add(24*time.Hour), false).
		AddRow("01", "AAAA2345", "p1", "Jane Doe", now.Add(-time.Hour), now.Add(23*time.Hour), true)
	mock.ExpectQuery("select .* from access_grants").
		WithArgs("p1", listCap).
		WillReturnRows(rows)

	grants, err := store.ListByPatient(context.Background(), "p1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 || grants[0].Code != "BBBB2345" || !grants[1].Used {
		t.Fatalf("unexpected grants: %+v", grants)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
