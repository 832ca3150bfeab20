package password

import (
	"strings"
	"testing"
)

func fastArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestArgon2(t *testing.T) *Argon2 {
	t.Helper()
	hasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher := newTestArgon2(t)

	hash, err := hasher.Hash("Strong123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if !hasher.Verify("Strong123", hash) {
		t.Fatal("expected password verification to succeed")
	}
	if hasher.Verify("Strong124", hash) {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	hasher := newTestArgon2(t)

	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("equal passwords must not produce equal digests")
	}
}

func TestArgon2MutatedDigestFails(t *testing.T) {
	hasher := newTestArgon2(t)

	hash, err := hasher.Hash("Strong123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// The final character carries unused bits, so stop one short of it.
	for i := len(hash) - 12; i < len(hash)-1; i++ {
		b := []byte(hash)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if hasher.Verify("Strong123", string(b)) {
			t.Fatalf("mutated digest at byte %d verified", i)
		}
	}
}

func TestArgon2MalformedDigest(t *testing.T) {
	hasher := newTestArgon2(t)

	for _, digest := range []string{
		"",
		"not-a-phc-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if hasher.Verify("anything", digest) {
			t.Fatalf("malformed digest %q verified", digest)
		}
	}
}

func TestArgon2AcceptsPaddedEncoding(t *testing.T) {
	hasher := newTestArgon2(t)

	hash, err := hasher.Hash("Strong123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="
	if !hasher.Verify("Strong123", strings.Join(parts, "$")) {
		t.Fatal("expected padded base64 digest to verify")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	oldHasher := newTestArgon2(t)
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastArgon2Config()
	stronger.Time = 2
	newHasher, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	needsUpgrade, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return true for weaker parameters")
	}

	needsUpgrade, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastArgon2Config()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}

	cfg = fastArgon2Config()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}
}
