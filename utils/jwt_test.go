package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret-key-for-unit-tests"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func validClaims(sub string) Claims {
	return Claims{
		Email: "validate@test.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestValidateToken(t *testing.T) {
	userID := uuid.New()
	vendorID := uuid.New()
	c := validClaims(userID.String())
	c.AppMetadata = AppMetadata{Role: RoleVendor, VendorID: vendorID.String()}

	claims, err := ValidateToken(signToken(t, c, testSecret), testSecret)
	if err != nil {
		t.Fatalf("expected no error validating token, got: %v", err)
	}

	id, _ := claims.UserID()
	if id != userID {
		t.Errorf("expected user_id %s, got %s", userID, id)
	}
	if claims.Email != "validate@test.com" {
		t.Errorf("expected email validate@test.com, got %s", claims.Email)
	}
	if claims.Role() != RoleVendor {
		t.Errorf("expected role vendor, got %s", claims.Role())
	}
	if claims.VendorID() == nil || *claims.VendorID() != vendorID {
		t.Errorf("expected vendor_id %s, got %v", vendorID, claims.VendorID())
	}
}

func TestTokenDefaultsToCustomer(t *testing.T) {
	claims, err := ValidateToken(signToken(t, validClaims(uuid.NewString()), testSecret), testSecret)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if claims.Role() != RoleCustomer {
		t.Errorf("expected customer role, got %s", claims.Role())
	}
	if claims.VendorID() != nil {
		t.Errorf("expected nil vendor_id, got %v", claims.VendorID())
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	c := validClaims(uuid.NewString())
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))

	if _, err := ValidateToken(signToken(t, c, testSecret), testSecret); err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}

func TestTokenWithoutExpiryRejected(t *testing.T) {
	c := validClaims(uuid.NewString())
	c.ExpiresAt = nil

	if _, err := ValidateToken(signToken(t, c, testSecret), testSecret); err == nil {
		t.Fatal("expected error for token without exp")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token := signToken(t, validClaims(uuid.NewString()), "other-secret")
	if _, err := ValidateToken(token, testSecret); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestNonUUIDSubjectRejected(t *testing.T) {
	_, err := ValidateToken(signToken(t, validClaims("not-a-uuid"), testSecret), testSecret)
	if !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := ValidateToken("a.b.c", "")
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
