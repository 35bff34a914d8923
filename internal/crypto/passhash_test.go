package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// Low work factor for tests; the format is identical at any count.
const testIter = 1_000

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal — looks non-random", n)
	}
}

func TestNew_DefaultsOnBadIterations(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -5} {
		if e := New(n); e.iterations != DefaultIterations {
			t.Fatalf("New(%d).iterations=%d, want default %d", n, e.iterations, DefaultIterations)
		}
	}
}

func TestCreateHash_Format(t *testing.T) {
	t.Parallel()

	e := New(testIter)
	h, err := e.CreateHash("p@ssw0rd")
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}
	parts := strings.Split(h, "$")
	if len(parts) != 4 {
		t.Fatalf("want 4 $-separated fields, got %d (%q)", len(parts), h)
	}
	if parts[0] != FormatTag {
		t.Fatalf("tag=%q, want %q", parts[0], FormatTag)
	}
	if parts[1] != "1000" {
		t.Fatalf("iterations field=%q, want 1000", parts[1])
	}
	if len(parts[2]) != 2*saltBytes {
		t.Fatalf("salt length=%d, want %d hex chars", len(parts[2]), 2*saltBytes)
	}
	if len(parts[3]) != 2*keyLen {
		t.Fatalf("digest length=%d, want %d hex chars", len(parts[3]), 2*keyLen)
	}

	h2, err := e.CreateHash("p@ssw0rd")
	if err != nil {
		t.Fatalf("CreateHash(2): %v", err)
	}
	if h == h2 {
		t.Fatalf("two hashes of the same password are identical — salt not random")
	}
}

func TestVerifyHash_RoundTripAndRejection(t *testing.T) {
	t.Parallel()

	e := New(testIter)
	h, err := e.CreateHash("correct horse battery staple")
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}

	v := e.VerifyHash("correct horse battery staple", h)
	if !v.IsValid {
		t.Fatalf("round-trip: expected valid")
	}
	if v.NeedsUpgrade {
		t.Fatalf("round-trip: fresh hash must not need upgrade")
	}

	if e.VerifyHash("wrong password", h).IsValid {
		t.Fatalf("rejection: wrong password accepted")
	}
	if e.VerifyHash("", h).IsValid {
		t.Fatalf("rejection: empty password accepted")
	}
}

func TestVerifyHash_UpgradeOnLowerIterations(t *testing.T) {
	t.Parallel()

	old := New(testIter)
	h, err := old.CreateHash("pw12345678")
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}

	cur := New(testIter * 2)
	v := cur.VerifyHash("pw12345678", h)
	if !v.IsValid {
		t.Fatalf("valid hash with lower work factor rejected")
	}
	if !v.NeedsUpgrade {
		t.Fatalf("lower iteration count must flag NeedsUpgrade")
	}
}

func TestVerifyHash_LegacyDigest(t *testing.T) {
	t.Parallel()

	e := New(testIter)
	sum := sha256.Sum256([]byte("oldpassword"))
	stored := hex.EncodeToString(sum[:])

	v := e.VerifyHash("oldpassword", stored)
	if !v.IsValid || !v.NeedsUpgrade {
		t.Fatalf("legacy digest: got %+v, want valid+upgrade", v)
	}
	if e.VerifyHash("otherpassword", stored).IsValid {
		t.Fatalf("legacy digest: wrong password accepted")
	}
}

func TestVerifyHash_LegacyPlaintext(t *testing.T) {
	t.Parallel()

	e := New(testIter)
	v := e.VerifyHash("hunter2", "hunter2")
	if !v.IsValid || !v.NeedsUpgrade {
		t.Fatalf("plaintext legacy: got %+v, want valid+upgrade", v)
	}
	if e.VerifyHash("hunter2", "hunter3").IsValid {
		t.Fatalf("plaintext legacy: mismatch accepted")
	}
}

func TestVerifyHash_MalformedStoredNeverMatchesByFormat(t *testing.T) {
	t.Parallel()

	e := New(testIter)
	for _, stored := range []string{
		"",
		"pbkdf2$$x$y",
		"pbkdf2$notanumber$salt$digest",
		"pbkdf2$-1$salt$digest",
		"pbkdf2$1000$salt",
		"pbkdf2$1000$salt$digest$extra",
		"scrypt$1000$salt$digest",
	} {
		if e.VerifyHash("anything", stored).IsValid {
			t.Fatalf("malformed stored hash %q verified", stored)
		}
	}
}
