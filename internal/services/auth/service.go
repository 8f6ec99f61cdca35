package auth

import (
	"context"
	"fmt"
)

// Service validates member access tokens. Token issuance lives with the
// member-portal login flow; this backend only needs verification.
type Service struct {
	jwt *JWTManager
}

func NewService(jwt *JWTManager) *Service {
	return &Service{jwt: jwt}
}

func (s *Service) ValidateAccessToken(_ context.Context, token string) (AccessClaims, error) {
	if s.jwt == nil {
		return AccessClaims{}, fmt.Errorf("jwt manager is not configured")
	}
	return s.jwt.ParseAccessToken(token)
}
