// Package accounts implements registration and self-service profile
// management on top of the user repository.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/repository"
	"github.com/MrEthical07/pmscanauth/password"
)

var (
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidName is returned for names shorter than MinNameLength.
	ErrInvalidName = errors.New("name must be at least 3 characters")
	// ErrInvalidEmail is returned for an empty email.
	ErrInvalidEmail = errors.New("email is required")
)

// MinNameLength is the shortest accepted display name, in characters.
const MinNameLength = 3

// DeletedMessage is returned by a successful Delete.
const DeletedMessage = "User deleted successfully"

// UserStore is the persistence the service needs.
type UserStore interface {
	Create(ctx context.Context, email, name, digest string) (repository.User, error)
	GetByID(ctx context.Context, id int64) (repository.User, error)
	Update(ctx context.Context, id int64, u repository.UserUpdate) (repository.User, error)
	Delete(ctx context.Context, id int64) error
}

// Profile is the public view of an account. It never carries the digest.
type Profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// UpdateInput carries optional profile changes.
type UpdateInput struct {
	Email    *string
	Password *string
	Name     *string
}

// Service manages accounts.
type Service struct {
	users  UserStore
	hasher pmscanauth.PasswordHasher
}

// NewService returns a Service hashing new passwords with hasher.
func NewService(users UserStore, hasher pmscanauth.PasswordHasher) *Service {
	return &Service{users: users, hasher: hasher}
}

// Register creates an account after checking the password policy.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Profile, error) {
	if strings.TrimSpace(in.Email) == "" {
		return Profile{}, ErrInvalidEmail
	}
	if err := checkName(in.Name); err != nil {
		return Profile{}, err
	}
	digest, err := s.hashPassword(in.Password)
	if err != nil {
		return Profile{}, err
	}

	u, err := s.users.Create(ctx, in.Email, in.Name, digest)
	if err != nil {
		return Profile{}, storeError(err)
	}
	return toProfile(u), nil
}

// Profile returns the account for id.
func (s *Service) Profile(ctx context.Context, id int64) (Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return Profile{}, storeError(err)
	}
	return toProfile(u), nil
}

// Update applies the set fields of in. A new password is policy-checked and
// rehashed.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Profile, error) {
	var upd repository.UserUpdate

	if in.Email != nil {
		if strings.TrimSpace(*in.Email) == "" {
			return Profile{}, ErrInvalidEmail
		}
		upd.Email = in.Email
	}
	if in.Name != nil {
		if err := checkName(*in.Name); err != nil {
			return Profile{}, err
		}
		upd.Name = in.Name
	}
	if in.Password != nil {
		digest, err := s.hashPassword(*in.Password)
		if err != nil {
			return Profile{}, err
		}
		upd.PasswordDigest = &digest
	}

	u, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return Profile{}, storeError(err)
	}
	return toProfile(u), nil
}

// Delete removes the account with its devices and records.
func (s *Service) Delete(ctx context.Context, id int64) (string, error) {
	if err := s.users.Delete(ctx, id); err != nil {
		return "", storeError(err)
	}
	return DeletedMessage, nil
}

func (s *Service) hashPassword(plain string) (string, error) {
	if err := password.CheckPolicy(plain); err != nil {
		return "", fmt.Errorf("%w: %v", pmscanauth.ErrPasswordPolicy, err)
	}
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

func checkName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		return ErrInvalidName
	}
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return pmscanauth.ErrUserNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrEmailTaken
	default:
		return err
	}
}

func toProfile(u repository.User) Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
