package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

// Digest returns the stored password representation: a hex-encoded SHA-256
// of the plaintext. The same digest is applied at registration, login
// comparison and reset, so equality against the stored column is the whole
// check. Unsalted by policy of the system this portal replaces; see
// DESIGN.md for the flagged risk.
func Digest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// CheckDigest compares a stored digest with the digest of a presented
// password in constant time.
func CheckDigest(stored, plain string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(Digest(plain))) == 1
}

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%&*"

// GeneratedPasswordLength is what the reset flow hands out.
const GeneratedPasswordLength = 8

// GeneratePassword draws n characters uniformly from the password alphabet
// using crypto/rand.
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		n = GeneratedPasswordLength
	}

	out := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))

	for i := range out {
		idx, err := rand.Int(rand.Reader, max)

		if err != nil {
			return "", err
		}

		out[i] = passwordAlphabet[idx.Int64()]
	}

	return string(out), nil
}
