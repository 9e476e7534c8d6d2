package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/nrednav/cuid2"
)

// DefaultTokenEntropy is the number of random bytes appended to the
// cuid component, 256 bits.
const DefaultTokenEntropy = 32

// GenerateToken returns an opaque single use token: a collision
// resistant cuid2 prefix followed by length bytes of crypto/rand hex.
// Tokens are compared by exact match only, nothing is parsed out of
// them. A length below 16 bytes is raised to 16 to keep at least 128
// bits of entropy.
//
// An unreadable entropy source leaves no safe way to mint credentials,
// so failure panics rather than returning a weak token.
func GenerateToken(length int) string {
	if length < 16 {
		length = 16
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic("accounts: entropy source unavailable: " + err.Error())
	}
	return cuid2.Generate() + hex.EncodeToString(buf)
}

// NewToken mints a token with the default entropy.
func NewToken() string {
	return GenerateToken(DefaultTokenEntropy)
}

// HashToken derives the storable digest of a bearer token. Only this
// digest is persisted; the plaintext leaves the process once, in the
// mint response.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
