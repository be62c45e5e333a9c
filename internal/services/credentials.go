package services

import (
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore hashes secrets and verifies candidates against a stored
// hash. Verify must compare in constant time.
type CredentialStore interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type BcryptCredentialStore struct {
	cost int
}

func NewBcryptCredentialStore(cost int) *BcryptCredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptCredentialStore{cost: cost}
}

func (s *BcryptCredentialStore) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *BcryptCredentialStore) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
