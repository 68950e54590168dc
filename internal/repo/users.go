package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/snipd/snipd/internal"
)

type userRow struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	CreatedAt Date   `db:"created_at"`
}

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

// GetOrCreateByEmail provisions a user row on first sight. A concurrent
// first login can lose the insert race on the email unique constraint, in
// which case the winner's row is returned.
func (r *UsersRepo) GetOrCreateByEmail(ctx context.Context, email string) (*internal.User, error) {
	if user, err := r.getOne(ctx, goqu.Ex{"email": email}); err == nil {
		return user, nil
	} else if !errors.Is(err, internal.ErrNotFound) {
		return nil, err
	}

	executor := goqu.New("sqlite", r.db)

	query := executor.Insert("users").
		Cols("id", "email", "created_at").
		Vals([]any{uuid.NewString(), email, Date(time.Now().UTC())}).
		Returning("id", "email", "created_at")

	var row userRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		if isUniqueViolation(err) {
			return r.getOne(ctx, goqu.Ex{"email": email})
		}
		log.Error().Err(err).Str("email", email).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: insert returned no rows", internal.ErrStoreUnavailable)
	}

	log.Info().Str("id", row.ID).Str("email", email).Msg("user provisioned")
	return row.toDomain(), nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (*internal.User, error) {
	return r.getOne(ctx, goqu.Ex{"id": id})
}

func (r *UsersRepo) getOne(ctx context.Context, where goqu.Ex) (*internal.User, error) {
	executor := goqu.New("sqlite", r.db)

	query := executor.From("users").Where(where).Select("id", "email", "created_at")

	var row userRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch user")
		return nil, fmt.Errorf("%w: %v", internal.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, internal.ErrNotFound
	}

	return row.toDomain(), nil
}

func (r *userRow) toDomain() *internal.User {
	return &internal.User{
		ID:        r.ID,
		Email:     r.Email,
		CreatedAt: r.CreatedAt.Time(),
	}
}
