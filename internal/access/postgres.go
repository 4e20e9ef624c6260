package access

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// PGStore implements Store using PostgreSQL. Consume relies on a
// conditional update so the used-flag flip is atomic in the database,
// never a read-then-write in the application.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, g *Grant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into access_grants(id, code, patient_id, patient_name, created_at, expires_at, used)
		values ($1,$2,$3,$4,$5,$6,false)
	`, g.ID, g.Code, g.PatientID, g.PatientName, g.CreatedAt, g.ExpiresAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrCodeExists
	}
	return err
}

func (s *PGStore) FindByCode(ctx context.Context, code string) (*Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, code, patient_id, patient_name, created_at, expires_at, used
		from access_grants where code=$1
	`, code)
	var g Grant
	err := row.Scan(&g.ID, &g.Code, &g.PatientID, &g.PatientName, &g.CreatedAt, &g.ExpiresAt, &g.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PGStore) Consume(ctx context.Context, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update access_grants set used=true where code=$1 and used=false
	`, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PGStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]Grant, error) {
	if limit <= 0 || limit > listCap {
		limit = listCap
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, code, patient_id, patient_name, created_at, expires_at, used
		from access_grants
		where patient_id=$1
		order by created_at desc, id desc
		limit $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Grant{}
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.Code, &g.PatientID, &g.PatientName,
			&g.CreatedAt, &g.ExpiresAt, &g.Used); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
