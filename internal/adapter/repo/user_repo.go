package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"productsnap/internal/domain"
	"productsnap/internal/infra"
	"productsnap/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

// GetByEmail fetches a user by case-insensitive email.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByEmail, strings.TrimSpace(email)))
}

// Upsert creates the user or refreshes their name. An empty name keeps the
// stored one.
func (r *UserRepositoryPG) Upsert(ctx context.Context, email, fullName string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QInsertUser, strings.TrimSpace(email), strings.TrimSpace(fullName)))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
