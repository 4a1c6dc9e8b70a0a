package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	codec, err := New(Config{SecretKey: testSecret})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return codec
}

// signRaw signs an arbitrary claim set with the test secret, bypassing
// Encode, so tests can craft exp values Encode would refuse.
func signRaw(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: claims}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return signed
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	signed, issued, err := codec.Encode("u1", time.Minute)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	claims, err := codec.Decode(signed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("subject = %q, want u1", claims.Subject)
	}
	if claims.ID != issued.ID {
		t.Fatalf("token id = %q, want %q", claims.ID, issued.ID)
	}
	if !claims.ExpiresAt.Time.After(time.Now()) {
		t.Fatalf("expiry %v not in the future", claims.ExpiresAt.Time)
	}
}

func TestEncodeGeneratesUniqueTokenIDs(t *testing.T) {
	codec := newTestCodec(t)

	_, first, err := codec.Encode("u1", time.Minute)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	_, second, err := codec.Encode("u1", time.Minute)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if first.ID == second.ID {
		t.Fatalf("token ids collided: %q", first.ID)
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	codec := newTestCodec(t)

	if _, _, err := codec.Encode("", time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := codec.Encode("u1", 0); err == nil {
		t.Fatal("expected error for zero lifetime")
	}
}

func TestDecodeMalformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, tokenString := range []string{"", "garbage", "a.b.c"} {
		if _, err := codec.Decode(tokenString); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) = %v, want ErrMalformed", tokenString, err)
		}
	}
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	codec := newTestCodec(t)

	other, err := New(Config{SecretKey: []byte("another-secret-key-of-some-size!")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	signed, _, err := other.Encode("u1", time.Minute)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := codec.Decode(signed); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("Decode = %v, want ErrSignatureInvalid", err)
	}
}

func TestDecodeRejectsForeignAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	edCodec, err := New(Config{SigningMethod: MethodEd25519, PrivateKey: priv})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	signed, _, err := edCodec.Encode("u1", time.Minute)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := codec.Decode(signed); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("Decode = %v, want ErrSignatureInvalid", err)
	}
}

func TestDecodeExpired(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	signed := signRaw(t, jwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "tok-1",
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	})

	if _, err := codec.Decode(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("Decode = %v, want ErrExpired", err)
	}
}

func TestExpiryBoundaryInclusive(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	// exp serialized at second precision lands at or before now, and a
	// token expiring exactly "now" must already count as expired.
	signed := signRaw(t, jwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "tok-1",
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now),
	})

	if _, err := codec.Decode(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("Decode = %v, want ErrExpired", err)
	}
}

func TestIgnoreExpiryStillVerifiesSignature(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	signed := signRaw(t, jwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "tok-1",
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	})

	claims, err := codec.Decode(signed, IgnoreExpiry())
	if err != nil {
		t.Fatalf("Decode with IgnoreExpiry failed: %v", err)
	}
	if claims.ID != "tok-1" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims: subject=%q id=%q", claims.Subject, claims.ID)
	}

	other, err := New(Config{SecretKey: []byte("another-secret-key-of-some-size!")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := other.Decode(signed, IgnoreExpiry()); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("Decode = %v, want ErrSignatureInvalid", err)
	}
}

func TestDecodeRejectsIncompleteClaims(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	// A verifiable token without a token id has no revocation key and is
	// useless to the authority.
	signed := signRaw(t, jwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	})

	if _, err := codec.Decode(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Decode = %v, want ErrMalformed", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	codec, err := New(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	signed, _, err := codec.Encode("u1", time.Minute)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	claims, err := codec.Decode(signed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("subject = %q, want u1", claims.Subject)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing secret key")
	}
	if _, err := New(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected error for missing ed25519 private key")
	}
	if _, err := New(Config{SigningMethod: "rs512", SecretKey: testSecret}); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}
