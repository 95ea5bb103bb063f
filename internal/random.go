package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"time"
)

// TokenIDBytes is the entropy of a token id: 128 bits.
const TokenIDBytes = 16

// NewTokenID returns 128 random bits, hex encoded.
func NewTokenID() (string, error) {
	var raw [TokenIDBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// RandomDuration picks a uniformly random duration in [min, max].
func RandomDuration(min, max time.Duration) (time.Duration, error) {
	if min < 0 || max < min {
		return 0, errors.New("invalid duration range")
	}
	span := int64(max-min) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return min + time.Duration(n.Int64()), nil
}
