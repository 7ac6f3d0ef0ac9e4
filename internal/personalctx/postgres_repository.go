package personalctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository assembles context bundles from the relational store.
type PostgresRepository struct {
	pool dbQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("personalctx: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec dbQuerier) *PostgresRepository {
	if exec == nil {
		panic("personalctx: exec required")
	}
	return &PostgresRepository{pool: exec}
}

// FetchBundle loads the patient name, ANC summary, active prescriptions
// and upcoming reminders in one pass.
func (r *PostgresRepository) FetchBundle(ctx context.Context, patientID string) (*Bundle, error) {
	bundle := &Bundle{}

	head := `
		SELECT p.name, COALESCE(a.summary, '')
		FROM patients p
		LEFT JOIN anc_records a ON a.patient_id = p.id
		WHERE p.id = $1
	`
	if err := r.pool.QueryRow(ctx, head, patientID).Scan(&bundle.Name, &bundle.ANCSummary); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("personalctx: patient %s not found", patientID)
		}
		return nil, fmt.Errorf("personalctx: patient select failed: %w", err)
	}

	rxQuery := `
		SELECT name, dosage, COALESCE(instructions, '')
		FROM prescriptions
		WHERE patient_id = $1 AND active
		ORDER BY created_at DESC
	`
	rxRows, err := r.pool.Query(ctx, rxQuery, patientID)
	if err != nil {
		return nil, fmt.Errorf("personalctx: prescriptions select failed: %w", err)
	}
	defer rxRows.Close()
	for rxRows.Next() {
		var rx Prescription
		if err := rxRows.Scan(&rx.Name, &rx.Dosage, &rx.Instructions); err != nil {
			return nil, fmt.Errorf("personalctx: prescription scan failed: %w", err)
		}
		bundle.Prescriptions = append(bundle.Prescriptions, rx)
	}
	if err := rxRows.Err(); err != nil {
		return nil, fmt.Errorf("personalctx: prescription rows failed: %w", err)
	}

	remQuery := `
		SELECT label, due_at
		FROM reminders
		WHERE patient_id = $1 AND due_at > now()
		ORDER BY due_at
		LIMIT 10
	`
	remRows, err := r.pool.Query(ctx, remQuery, patientID)
	if err != nil {
		return nil, fmt.Errorf("personalctx: reminders select failed: %w", err)
	}
	defer remRows.Close()
	for remRows.Next() {
		var rem Reminder
		if err := remRows.Scan(&rem.Label, &rem.DueAt); err != nil {
			return nil, fmt.Errorf("personalctx: reminder scan failed: %w", err)
		}
		bundle.Reminders = append(bundle.Reminders, rem)
	}
	if err := remRows.Err(); err != nil {
		return nil, fmt.Errorf("personalctx: reminder rows failed: %w", err)
	}

	return bundle, nil
}
