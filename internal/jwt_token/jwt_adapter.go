package jwttoken

import (
	"doctrack/pkg/requestcontext"
)

// JWTServiceAdapter exposes JWTService through the shape the auth middleware expects.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (requestcontext.Identity, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.Identity{}, err
	}
	return claims.Identity(), nil
}
