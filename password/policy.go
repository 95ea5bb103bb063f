package password

import (
	"errors"
	"strings"
)

// PolicySpecials is the set of non-alphanumeric characters a password may
// contain, and must contain at least one of.
const PolicySpecials = "@$!%*?&"

// ErrPolicy is returned by CheckPolicy.
var ErrPolicy = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit and one of @$!%*?&")

// CheckPolicy enforces the account password rules: at least MinPasswordBytes
// long, drawn only from ASCII letters, digits and PolicySpecials, with at
// least one of each class.
func CheckPolicy(password string) error {
	if len(password) < MinPasswordBytes {
		return ErrPolicy
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PolicySpecials, r):
			special = true
		default:
			return ErrPolicy
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrPolicy
	}
	return nil
}
