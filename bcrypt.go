package accounts

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost trades sign-in latency for resistance to offline
// cracking; 14 keeps a single verify under interactive thresholds.
const passwordHashCost = 14

// HashPassword derives the stored hash for a cleartext password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	return string(h), err
}

// ComparePasswordAndHash checks a cleartext password against a stored
// hash, mapping a plain mismatch onto the package sentinel.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash produces a valid hash no submitted password will
// ever match. Admin created accounts carry it until their owner sets a
// real password through recovery.
func RandomPasswordHash() string {
	for {
		h, err := HashPassword(uuid.NewString())
		if err == nil {
			return h
		}
	}
}
