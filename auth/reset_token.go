package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// ResetTokenBytes entropy of a reset token before hex encoding
	ResetTokenBytes = 32
	// DefaultResetTokenTTL how long a reset token can be redeemed
	DefaultResetTokenTTL = 10 * time.Minute
)

// NewResetToken returns a random hex token and the digest to persist.
func NewResetToken() (plain, digest string, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}

	plain = hex.EncodeToString(buf)
	return plain, HashResetToken(plain), nil
}

// HashResetToken returns the sha256 hex digest of a plaintext token
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// resetTokenMatches compares a stored digest with the digest of a
// candidate in constant time.
func resetTokenMatches(stored *string, candidateDigest string) bool {
	if stored == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(candidateDigest)) == 1
}

// SetResetToken stores digest on the user with an expiry of now+ttl
func (u *User) SetResetToken(digest string, now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	expires := now.Add(ttl)
	u.PasswordResetToken = &digest
	u.PasswordResetExpires = &expires
}

// ResetTokenValid reports whether candidateDigest matches the pending
// reset and the reset has not expired at now.
func (u *User) ResetTokenValid(candidateDigest string, now time.Time) bool {
	if !u.HasResetToken() {
		return false
	}
	if !u.PasswordResetExpires.After(now) {
		return false
	}
	return resetTokenMatches(u.PasswordResetToken, candidateDigest)
}
