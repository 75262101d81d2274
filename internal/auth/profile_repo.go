package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepo struct{ DB *pgxpool.Pool }

func (r *ProfileRepo) Profile(ctx context.Context, userID string) (Profile, error) {
	var grade, status *string
	err := r.DB.QueryRow(ctx, `SELECT grade, status FROM profiles WHERE id = $1`, userID).Scan(&grade, &status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	var p Profile
	if grade != nil {
		p.Grade = *grade
	}
	if status != nil {
		p.Status = *status
	}
	return p, nil
}
