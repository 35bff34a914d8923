// Package crypto implements password hashing and verification for the vault.
//
// Stored hashes are self-describing: "pbkdf2$<iterations>$<salt>$<digest>".
// Verification sniffs the format instead of consulting a version flag, so
// the work factor can be raised over time without a schema migration. Two
// historical formats are still accepted on the way in: a bare unsalted
// SHA-256 hex digest, and (for the oldest records) the plaintext password
// itself. Both are always flagged for upgrade.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// FormatTag identifies the current encoded-hash format.
	FormatTag = "pbkdf2"

	// DefaultIterations is the current PBKDF2 work factor. Stored hashes
	// with a lower count verify fine but come back with NeedsUpgrade set.
	DefaultIterations = 120_000

	saltBytes = 16
	keyLen    = 32
)

// Verification is the outcome of checking a password against a stored hash.
type Verification struct {
	// IsValid reports whether the password matches.
	IsValid bool
	// NeedsUpgrade reports that the stored hash is in a legacy format or
	// carries a below-target iteration count and should be re-encoded.
	NeedsUpgrade bool
}

// Engine hashes and verifies passwords with a configurable work factor.
// The zero value is not usable; construct with New.
type Engine struct {
	iterations int
}

// New returns an Engine with the given target iteration count. Counts
// below 1 fall back to DefaultIterations.
func New(iterations int) *Engine {
	if iterations < 1 {
		iterations = DefaultIterations
	}
	return &Engine{iterations: iterations}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// CreateHash derives a salted hash of password in the current format.
func (e *Engine) CreateHash(password string) (string, error) {
	salt, err := RandBytes(saltBytes)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltText := hex.EncodeToString(salt)
	digest := derive(password, saltText, e.iterations)
	return strings.Join([]string{FormatTag, strconv.Itoa(e.iterations), saltText, digest}, "$"), nil
}

// VerifyHash checks password against stored. Malformed stored hashes are
// never an error: they simply fail the current-format sniff and fall
// through to the legacy comparisons, ending at IsValid=false.
func (e *Engine) VerifyHash(password, stored string) Verification {
	if tag, iter, saltText, digest, ok := parseEncoded(stored); ok && tag == FormatTag {
		got := derive(password, saltText, iter)
		if constEq(got, digest) {
			return Verification{IsValid: true, NeedsUpgrade: iter < e.iterations}
		}
		return Verification{}
	}

	// Legacy: unsalted SHA-256 hex digest.
	if constEq(legacyDigest(password), stored) {
		return Verification{IsValid: true, NeedsUpgrade: true}
	}
	// Oldest records stored the plaintext verbatim. Accepted for migration
	// only; nothing ever writes this format.
	if constEq(password, stored) {
		return Verification{IsValid: true, NeedsUpgrade: true}
	}
	return Verification{}
}

// parseEncoded splits an encoded hash into its four fields. ok is false
// unless there are exactly four non-empty fields and a positive integer
// iteration count.
func parseEncoded(stored string) (tag string, iterations int, salt, digest string, ok bool) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return "", 0, "", "", false
	}
	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 || parts[0] == "" || parts[2] == "" || parts[3] == "" {
		return "", 0, "", "", false
	}
	return parts[0], iter, parts[2], parts[3], true
}

// derive runs PBKDF2-SHA256 over the password with the salt taken as
// opaque text. The salt is never decoded; the stored rendering is the key
// material, which keeps old and new hashes byte-compatible.
func derive(password, saltText string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(saltText), iterations, keyLen, sha256.New)
	return hex.EncodeToString(key)
}

// legacyDigest is the historical unsalted digest of a password.
func legacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func constEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
