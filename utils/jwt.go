package utils

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

var ErrMissingSubject = errors.New("token has no valid subject")

// AppMetadata is the provider-managed claim block; users cannot edit it.
type AppMetadata struct {
	Role     string `json:"role,omitempty"`
	VendorID string `json:"vendor_id,omitempty"`
}

// Claims are the fields read from identity-provider access tokens. Tokens are
// only verified here; issuing them is the provider's job.
type Claims struct {
	Email       string      `json:"email"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrMissingSubject
	}
	return id, nil
}

// Role defaults to customer when the provider did not assign one.
func (c *Claims) Role() string {
	if c.AppMetadata.Role == "" {
		return RoleCustomer
	}
	return c.AppMetadata.Role
}

// VendorID is nil unless the token carries a parseable vendor id.
func (c *Claims) VendorID() *uuid.UUID {
	if c.AppMetadata.VendorID == "" {
		return nil
	}
	id, err := uuid.Parse(c.AppMetadata.VendorID)
	if err != nil {
		return nil
	}
	return &id
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
