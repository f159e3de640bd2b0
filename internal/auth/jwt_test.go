package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/splitledger/internal/models"
)

func TestSignAndVerify(t *testing.T) {
	m := NewTokenSigner("test-secret", time.Hour)
	user := models.User{ID: "u1", Name: "Ana", ProfileURL: "https://example.com/a.png"}

	token, err := m.Sign(user)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if got := claims.User(); got != user {
		t.Errorf("User() = %+v, want %+v", got, user)
	}
	if claims.Subject != "u1" {
		t.Errorf("Subject = %q", claims.Subject)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenSigner("test-secret", time.Hour)
	good, _ := m.Sign(models.User{ID: "u1"})

	expired := NewTokenSigner("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Sign(models.User{ID: "u1"})

	other, _ := NewTokenSigner("other-secret", time.Hour).Sign(models.User{ID: "u1"})

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	forge := func(c *Claims) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		return signed
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	foreign := forge(&Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", Subject: "u1", ExpiresAt: exp}})
	forever := forge(&Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "u1"}})
	swapped := forge(&Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "u2", ExpiresAt: exp}})

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", old},
		{"wrong secret", other},
		{"unsigned", none},
		{"truncated", good[:len(good)-4]},
		{"other issuer", foreign},
		{"no expiry", forever},
		{"subject mismatch", swapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestSignRequiresID(t *testing.T) {
	if _, err := NewTokenSigner("s", time.Hour).Sign(models.User{Name: "nobody"}); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestVerifyToleratesSmallSkew(t *testing.T) {
	signer := NewTokenSigner("test-secret", time.Hour)
	signer.now = func() time.Time { return time.Now().Add(10 * time.Second) }
	token, err := signer.Sign(models.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenSigner("test-secret", time.Hour).Verify(token); err != nil {
		t.Errorf("token issued 10s ahead rejected: %v", err)
	}
}
