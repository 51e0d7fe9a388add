package link

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &linkRepoPG{pool: pool}
}

const linkCols = `id, account_id, token, linked_at`

func scanRow(row pgx.Row) (*LinkRecord, error) {
	var rec LinkRecord
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.Token, &rec.LinkedAt)
	return &rec, err
}

func (r *linkRepoPG) FindByAccount(ctx context.Context, accountID string) ([]*LinkRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+linkCols+` FROM linked_patients
		WHERE account_id = $1 ORDER BY linked_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *linkRepoPG) FindByToken(ctx context.Context, token string) (*LinkRecord, error) {
	rec, err := scanRow(r.pool.QueryRow(ctx, `SELECT `+linkCols+` FROM linked_patients
		WHERE token = $1 ORDER BY linked_at ASC, id ASC LIMIT 1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *linkRepoPG) ListByToken(ctx context.Context, token string) ([]*LinkRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+linkCols+` FROM linked_patients
		WHERE token = $1 ORDER BY linked_at ASC, id ASC`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *linkRepoPG) Insert(ctx context.Context, rec *LinkRecord) error {
	rec.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `INSERT INTO linked_patients (id, account_id, token)
		VALUES ($1, $2, $3) RETURNING linked_at`,
		rec.ID, rec.AccountID, rec.Token).Scan(&rec.LinkedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (r *linkRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM linked_patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]*LinkRecord, error) {
	var items []*LinkRecord
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
