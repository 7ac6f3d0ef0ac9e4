package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores contact channels in the relational database.
type PostgresRepository struct {
	pool dbQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec dbQuerier) *PostgresRepository {
	if exec == nil {
		panic("identity: exec required")
	}
	return &PostgresRepository{pool: exec}
}

// FindPatientByPhone returns the patient linked to the phone, if any.
func (r *PostgresRepository) FindPatientByPhone(ctx context.Context, phoneE164 string) (*Patient, error) {
	query := `
		SELECT id, name, phone_e164
		FROM patients
		WHERE phone_e164 = $1
	`
	var p Patient
	if err := r.pool.QueryRow(ctx, query, phoneE164).Scan(&p.ID, &p.Name, &p.PhoneE164); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity: patient select failed: %w", err)
	}
	return &p, nil
}

// FindProviderByPhone returns the provider linked to the phone, if any.
func (r *PostgresRepository) FindProviderByPhone(ctx context.Context, phoneE164 string) (*Provider, error) {
	query := `
		SELECT id, name, phone_e164, email
		FROM providers
		WHERE phone_e164 = $1
	`
	var p Provider
	if err := r.pool.QueryRow(ctx, query, phoneE164).Scan(&p.ID, &p.Name, &p.PhoneE164, &p.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity: provider select failed: %w", err)
	}
	return &p, nil
}

// FindOrCreateVisitor returns the visitor for the phone, inserting a new
// row on first contact. The insert uses ON CONFLICT DO NOTHING plus a
// re-select so two racing first contacts converge on one row.
func (r *PostgresRepository) FindOrCreateVisitor(ctx context.Context, phoneE164 string) (*Visitor, error) {
	insert := `
		INSERT INTO visitors (id, phone_e164)
		VALUES ($1, $2)
		ON CONFLICT (phone_e164) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, uuid.New(), phoneE164); err != nil {
		return nil, fmt.Errorf("identity: visitor insert failed: %w", err)
	}

	query := `
		SELECT id, COALESCE(name, ''), phone_e164
		FROM visitors
		WHERE phone_e164 = $1
	`
	var v Visitor
	if err := r.pool.QueryRow(ctx, query, phoneE164).Scan(&v.ID, &v.Name, &v.PhoneE164); err != nil {
		return nil, fmt.Errorf("identity: visitor select failed: %w", err)
	}
	return &v, nil
}

// UpdateVisitorName records the name a visitor shared during onboarding.
func (r *PostgresRepository) UpdateVisitorName(ctx context.Context, id string, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE visitors SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("identity: visitor update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProvider fetches a provider by id.
func (r *PostgresRepository) GetProvider(ctx context.Context, id string) (*Provider, error) {
	query := `
		SELECT id, name, phone_e164, email
		FROM providers
		WHERE id = $1
	`
	var p Provider
	if err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.PhoneE164, &p.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity: provider select failed: %w", err)
	}
	return &p, nil
}

// ListProviders returns the full provider directory.
func (r *PostgresRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	query := `
		SELECT id, name, phone_e164, email
		FROM providers
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("identity: provider list failed: %w", err)
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.PhoneE164, &p.Email); err != nil {
			return nil, fmt.Errorf("identity: provider scan failed: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("identity: provider rows failed: %w", err)
	}
	return providers, nil
}
