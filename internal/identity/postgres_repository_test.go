package identity

import (
	"context"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresFindPatientByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectQuery("SELECT id, name, phone_e164").
		WithArgs("+15551234567").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone_e164"}).AddRow("pat-1", "Amina", "+15551234567"))
	patient, err := repo.FindPatientByPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if patient.ID != "pat-1" || patient.Name != "Amina" {
		t.Fatalf("unexpected patient: %+v", patient)
	}

	mock.ExpectQuery("SELECT id, name, phone_e164").
		WithArgs("+15550000000").
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.FindPatientByPhone(context.Background(), "+15550000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresFindOrCreateVisitor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectExec("INSERT INTO visitors").
		WithArgs(pgxmock.AnyArg(), "+15557770000").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id, COALESCE").
		WithArgs("+15557770000").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone_e164"}).AddRow("vis-1", "", "+15557770000"))

	visitor, err := repo.FindOrCreateVisitor(context.Background(), "+15557770000")
	if err != nil {
		t.Fatalf("find-or-create failed: %v", err)
	}
	if visitor.ID != "vis-1" || visitor.Name != "" {
		t.Fatalf("unexpected visitor: %+v", visitor)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateVisitorNameMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectExec("UPDATE visitors SET name").
		WithArgs("vis-missing", "Chidi").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := repo.UpdateVisitorName(context.Background(), "vis-missing", "Chidi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
