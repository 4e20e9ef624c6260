package patient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// PGStore implements Store using PostgreSQL. Allergy and medication
// lists are stored as jsonb; medical records live in their own table
// ordered by an append sequence.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, p *Patient) error {
	allergies, _ := json.Marshal(p.Allergies)
	medications, _ := json.Marshal(p.Medications)
	_, err := s.db.ExecContext(ctx, `
		insert into patients(id, email, password_hash, full_name, date_of_birth,
			blood_group, phone, emergency_contact, allergies, medications, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, p.ID, p.Email, p.PasswordHash, p.FullName, p.DateOfBirth,
		p.BloodGroup, p.Phone, p.EmergencyContact, allergies, medications, p.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Patient, error) {
	return s.findOne(ctx, `where id=$1`, id)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	return s.findOne(ctx, `where email=$1`, email)
}

func (s *PGStore) findOne(ctx context.Context, where string, arg any) (*Patient, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, full_name, date_of_birth, blood_group,
			phone, emergency_contact, allergies, medications, created_at
		from patients `+where, arg)

	var (
		p           Patient
		allergies   []byte
		medications []byte
	)
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.DateOfBirth,
		&p.BloodGroup, &p.Phone, &p.EmergencyContact, &allergies, &medications, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Allergies = decodeStrings(allergies)
	p.Medications = decodeStrings(medications)

	records, err := s.listRecords(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.MedicalRecords = records
	return &p, nil
}

func (s *PGStore) listRecords(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, condition, diagnosis_date, treatment, doctor_name, hospital, notes, added_at
		from medical_records
		where patient_id=$1
		order by position asc
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []MedicalRecord{}
	for rows.Next() {
		var rec MedicalRecord
		if err := rows.Scan(&rec.ID, &rec.Condition, &rec.DiagnosisDate, &rec.Treatment,
			&rec.DoctorName, &rec.Hospital, &rec.Notes, &rec.AddedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Patient, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if upd.Allergies != nil {
		raw, _ := json.Marshal(*upd.Allergies)
		args = append(args, raw)
		sets = append(sets, fmt.Sprintf("allergies=$%d", len(args)))
	}
	if upd.Medications != nil {
		raw, _ := json.Marshal(*upd.Medications)
		args = append(args, raw)
		sets = append(sets, fmt.Sprintf("medications=$%d", len(args)))
	}
	if upd.EmergencyContact != nil {
		args = append(args, *upd.EmergencyContact)
		sets = append(sets, fmt.Sprintf("emergency_contact=$%d", len(args)))
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`update patients set %s where id=$%d`, strings.Join(sets, ", "), len(args)),
			args...)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrNotFound
		}
	}
	return s.FindByID(ctx, id)
}

func (s *PGStore) AppendRecord(ctx context.Context, id string, rec MedicalRecord) error {
	res, err := s.db.ExecContext(ctx, `
		insert into medical_records(id, patient_id, condition, diagnosis_date,
			treatment, doctor_name, hospital, notes, added_at)
		select $1, p.id, $3, $4, $5, $6, $7, $8, $9 from patients p where p.id=$2
	`, rec.ID, id, rec.Condition, rec.DiagnosisDate, rec.Treatment,
		rec.DoctorName, rec.Hospital, rec.Notes, rec.AddedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeStrings(raw []byte) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	if out == nil {
		out = []string{}
	}
	return out
}
