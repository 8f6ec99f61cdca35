package auth

import (
	"errors"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

type AccessClaims struct {
	MemberID  int64
	Role      string
	ExpiresAt time.Time
}
