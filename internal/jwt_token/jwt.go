// Package jwttoken issues and validates the bearer tokens that carry an
// already-authenticated actor to the HTTP edge.
package jwttoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/requestcontext"
)

// Claims represents the JWT claims for actor tokens.
type Claims struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// GenerateActorToken signs a token for the given identity.
func (s *JWTService) GenerateActorToken(id requestcontext.Identity, expiresIn time.Duration) (string, error) {
	if strings.TrimSpace(id.Name) == "" || strings.TrimSpace(id.Department) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "token requires name and department")
	}
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:       id.Name,
		Department: id.Department,
		Role:       id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Name,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Name == "" || claims.Department == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token does not name an actor")
	}
	return claims, nil
}

// Identity converts validated claims into the request-scoped identity.
func (c *Claims) Identity() requestcontext.Identity {
	return requestcontext.Identity{Name: c.Name, Department: c.Department, Role: c.Role}
}
