package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/pmscanauth"
)

// Directory adapts UserRepository to pmscanauth.UserDirectory.
type Directory struct {
	users *UserRepository
}

var _ pmscanauth.UserDirectory = (*Directory)(nil)

// NewDirectory wraps users.
func NewDirectory(users *UserRepository) *Directory {
	return &Directory{users: users}
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (pmscanauth.UserRecord, error) {
	u, err := d.users.GetByEmail(ctx, email)
	if err != nil {
		return pmscanauth.UserRecord{}, directoryError(err)
	}
	return toUserRecord(u), nil
}

func (d *Directory) FindByID(ctx context.Context, id int64) (pmscanauth.UserRecord, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return pmscanauth.UserRecord{}, directoryError(err)
	}
	return toUserRecord(u), nil
}

func (d *Directory) UpdateCredential(ctx context.Context, id int64, digest string) error {
	if _, err := d.users.Update(ctx, id, UserUpdate{PasswordDigest: &digest}); err != nil {
		return directoryError(err)
	}
	return nil
}

func directoryError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", pmscanauth.ErrUserNotFound, err)
	}
	return err
}

func toUserRecord(u User) pmscanauth.UserRecord {
	return pmscanauth.UserRecord{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		PasswordDigest: u.PasswordDigest,
	}
}
