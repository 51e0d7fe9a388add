package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) Insert(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.pool.QueryRow(ctx, `INSERT INTO patients (id, token)
		VALUES ($1, $2) RETURNING registered_at`, p.ID, p.Token).Scan(&p.RegisteredAt)
}

type issuedIDRepoPG struct{ pool *pgxpool.Pool }

func NewIssuedIDRepoPG(pool *pgxpool.Pool) IssuedIDRepository {
	return &issuedIDRepoPG{pool: pool}
}

func (r *issuedIDRepoPG) Get(ctx context.Context, patientID string) (*IssuedID, error) {
	var rec IssuedID
	err := r.pool.QueryRow(ctx, `SELECT patient_id, token, registered_at
		FROM registered_ids WHERE patient_id = $1`, patientID).
		Scan(&rec.PatientID, &rec.Token, &rec.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotIssued
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *issuedIDRepoPG) Set(ctx context.Context, rec *IssuedID) error {
	return r.pool.QueryRow(ctx, `INSERT INTO registered_ids (patient_id, token)
		VALUES ($1, $2)
		ON CONFLICT (patient_id) DO UPDATE SET token = EXCLUDED.token, registered_at = NOW()
		RETURNING registered_at`, rec.PatientID, rec.Token).Scan(&rec.RegisteredAt)
}
