package repository

import (
	"context"
	"database/sql"
)

const (
	userColumns = `id, email, name, password_digest, created_at, updated_at`

	insertUserQuery = `INSERT INTO users (email, name, password_digest)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	userByIDQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	userByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	updateUserQuery = `UPDATE users SET
		email = COALESCE($2, email),
		name = COALESCE($3, name),
		password_digest = COALESCE($4, password_digest),
		updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	deleteUserQuery = `DELETE FROM users WHERE id = $1`
)

// UserRepository persists accounts.
type UserRepository struct {
	db DBTX
}

// NewUserRepository returns a repository over db.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A duplicate email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, email, name, digest string) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, insertUserQuery, email, name, digest))
}

// GetByID returns ErrNotFound for unknown ids.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userByIDQuery, id))
}

// GetByEmail returns ErrNotFound for unknown emails.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userByEmailQuery, email))
}

// Update applies the non-nil fields of u and returns the new row.
func (r *UserRepository) Update(ctx context.Context, id int64, u UserUpdate) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, updateUserQuery,
		id, nullString(u.Email), nullString(u.Name), nullString(u.PasswordDigest)))
}

// Delete removes the user and, by cascade, their devices and records.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteUserQuery, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func scanUser(row rowScanner) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordDigest, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
