package user

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Format is the classification of a stored digest.
type Format int

const (
	Legacy Format = iota // plaintext
	Hashed
)

func (f Format) String() string {
	if f == Hashed {
		return "hashed"
	}
	return "legacy"
}

// bcrypt family; must follow the Hasher in use.
var hashPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// Classify reports whether digest is a bcrypt hash or a legacy plaintext credential.
func Classify(digest string) Format {
	for _, p := range hashPrefixes {
		if strings.HasPrefix(digest, p) {
			return Hashed
		}
	}
	return Legacy
}

func legacyEqual(candidate, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}

type Hasher interface {
	Hash(pwd string) (string, error)
	Compare(pwd, digest string) bool
}

type BcryptHasher struct {
	cost int
}

var _ Hasher = (*BcryptHasher)(nil)

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(pwd string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(pwd, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pwd)) == nil
}
