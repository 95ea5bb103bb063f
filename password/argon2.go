package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// MinPasswordBytes matches the shortest password the account policy accepts.
	MinPasswordBytes = 8
	// DefaultMaxPasswordBytes caps input size when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024

	phcPrefix = "$argon2id$"
)

// Lower bounds for both configured and parsed parameters.
const (
	floorMemoryKB uint32 = 8 * 1024
	floorTime     uint32 = 1
	floorThreads  uint8  = 1
	floorSalt            = 16
	floorKey             = 16
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	// ErrMalformedDigest covers every digest the PHC parser refuses.
	ErrMalformedDigest = errors.New("malformed argon2id digest")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes bounds Hash and Verify input. Zero means DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters new digests are produced with.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < floorMemoryKB:
		return fmt.Errorf("password memory must be >= %d KiB", floorMemoryKB)
	case c.Time < floorTime:
		return errors.New("password time must be >= 1")
	case c.Parallelism < floorThreads:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < floorSalt:
		return fmt.Errorf("password salt length must be >= %d", floorSalt)
	case c.KeyLength < floorKey:
		return fmt.Errorf("password key length must be >= %d", floorKey)
	case c.MaxPasswordBytes < MinPasswordBytes:
		return fmt.Errorf("password max bytes must be >= %d", MinPasswordBytes)
	}
	return nil
}

// Argon2 produces and checks PHC-encoded argon2id digests.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// phc is a decoded "$argon2id$v=..$m=..,t=..,p=..$salt$hash" string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phc) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version, p.memory, p.time, p.threads,
		enc.EncodeToString(p.salt), enc.EncodeToString(p.key))
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
}

// Hash derives a fresh salted digest of password. Bytes are used as given,
// without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", fmt.Errorf("%w: must be at least %d bytes", ErrPasswordTooShort, MinPasswordBytes)
	}
	if len(password) > a.cfg.MaxPasswordBytes {
		return "", fmt.Errorf("%w: must be at most %d bytes", ErrPasswordTooLong, a.cfg.MaxPasswordBytes)
	}

	p := phc{
		memory:  a.cfg.Memory,
		time:    a.cfg.Time,
		threads: a.cfg.Parallelism,
		salt:    make([]byte, a.cfg.SaltLength),
		key:     make([]byte, a.cfg.KeyLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	p.key = p.derive(password)
	return p.String(), nil
}

// Verify recomputes the digest with the parameters embedded in encoded and
// compares in constant time.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.cfg.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current config.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	weaker := p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.threads < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength
	return weaker, nil
}

func parsePHC(encoded string) (phc, error) {
	var p phc
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return p, fmt.Errorf("%w: not argon2id", ErrMalformedDigest)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return p, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedDigest, len(fields))
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return p, fmt.Errorf("%w: unsupported version %q", ErrMalformedDigest, fields[0])
	}
	var memory, time uint32
	var threads uint8
	if n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil || n != 3 {
		return p, fmt.Errorf("%w: bad parameters %q", ErrMalformedDigest, fields[1])
	}
	if memory < floorMemoryKB || time < floorTime || threads < floorThreads {
		return p, fmt.Errorf("%w: parameters below floor", ErrMalformedDigest)
	}

	salt, err := decodeB64(fields[2])
	if err != nil || len(salt) < floorSalt {
		return p, fmt.Errorf("%w: bad salt", ErrMalformedDigest)
	}
	key, err := decodeB64(fields[3])
	if err != nil || len(key) == 0 {
		return p, fmt.Errorf("%w: bad hash", ErrMalformedDigest)
	}

	return phc{memory: memory, time: time, threads: threads, salt: salt, key: key}, nil
}

// decodeB64 accepts PHC's unpadded base64 and the padded form some older
// encoders emit.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
