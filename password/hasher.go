package password

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// legacy bcrypt digests.
type Hasher struct {
	argon  *Argon2
	legacy *Bcrypt
}

// NewHasher builds a Hasher from the argon2id parameters in cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	legacy, err := NewBcrypt(0)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: argon, legacy: legacy}, nil
}

// Hash always produces an argon2id digest.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify dispatches on the digest format.
func (h *Hasher) Verify(password string, digest string) (bool, error) {
	if IsBcrypt(digest) {
		return h.legacy.Verify(password, digest)
	}
	return h.argon.Verify(password, digest)
}

// NeedsUpgrade is true for every bcrypt digest and for argon2id digests
// produced with weaker parameters.
func (h *Hasher) NeedsUpgrade(digest string) (bool, error) {
	if IsBcrypt(digest) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(digest)
}
