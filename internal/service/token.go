package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arsen085/admin-vault/internal/model"
)

// The persisted session snapshot is an HS256-signed token. The shared
// store is writable by anything on the device, so a hand-edited snapshot
// must fail signature verification and read as "no session" instead of
// being trusted. Expiry is NOT taken from the token: the session manager
// applies its own rolling last-active window.

type sessionClaims struct {
	User       sessionUserDTO `json:"user"`
	LastActive time.Time      `json:"lastActive"`
	jwt.RegisteredClaims
}

type sessionUserDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// encodeSession signs a snapshot of user and lastActive.
func encodeSession(key []byte, user model.SessionUser, lastActive time.Time) (string, error) {
	claims := sessionClaims{
		User: sessionUserDTO{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Role:      string(user.Role),
			CreatedAt: user.CreatedAt,
		},
		LastActive: lastActive,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(lastActive),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(key)
}

// decodeSession verifies the signature and returns the snapshot. Any
// parse or signature failure is a single error the caller treats as
// "absent session".
func decodeSession(key []byte, raw string) (model.SessionUser, time.Time, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return model.SessionUser{}, time.Time{}, err
	}
	if !tok.Valid {
		return model.SessionUser{}, time.Time{}, fmt.Errorf("invalid session token")
	}
	user := model.SessionUser{
		ID:        claims.User.ID,
		Username:  claims.User.Username,
		Email:     claims.User.Email,
		Role:      model.ParseRole(claims.User.Role),
		CreatedAt: claims.User.CreatedAt,
	}
	return user, claims.LastActive, nil
}
