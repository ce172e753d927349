package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Sessions carry the vendor phone explicitly instead of ambient client-side
// storage; handlers thread it through the request context.
type Claims struct {
	jwt.RegisteredClaims
	VendorPhone string `json:"vendor_phone"`
}

type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey string, ttl time.Duration) *Manager {
	return &Manager{signingKey: []byte(signingKey), ttl: ttl}
}

func (m *Manager) BuildToken(vendorPhone string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		VendorPhone: vendorPhone,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	})
	return token.SignedString(m.signingKey)
}

func (m *Manager) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.signingKey, nil
		})
	if err != nil {
		return "", fmt.Errorf("token error: %w", err)
	}
	if !token.Valid || claims.VendorPhone == "" {
		return "", fmt.Errorf("token is not valid")
	}
	return claims.VendorPhone, nil
}
