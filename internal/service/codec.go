package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arsen085/admin-vault/internal/model"
)

// userDTO is the persisted shape of one user record. Field names are part
// of the stored format and must not change.
type userDTO struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    string `json:"createdAt"`
	LastActive   string `json:"lastActive,omitempty"`
}

// decodeUsers parses the persisted user list. It returns an error for
// non-array or unparsable content; the caller decides to fall back to an
// empty list. Field-level oddities inside a record are coerced, not
// rejected: unknown roles become viewer, unparsable timestamps become zero.
func decodeUsers(b []byte) ([]model.User, error) {
	var dtos []userDTO
	if err := json.Unmarshal(b, &dtos); err != nil {
		return nil, fmt.Errorf("decode user list: %w", err)
	}
	users := make([]model.User, 0, len(dtos))
	for _, d := range dtos {
		users = append(users, model.User{
			ID:           d.ID,
			Username:     strings.TrimSpace(d.Username),
			Email:        strings.ToLower(strings.TrimSpace(d.Email)),
			Role:         model.ParseRole(d.Role),
			PasswordHash: d.PasswordHash,
			CreatedAt:    parseTime(d.CreatedAt),
			LastActive:   parseTime(d.LastActive),
		})
	}
	return users, nil
}

// encodeUsers serializes the whole list; every mutation rewrites the
// collection wholesale.
func encodeUsers(users []model.User) ([]byte, error) {
	dtos := make([]userDTO, 0, len(users))
	for _, u := range users {
		d := userDTO{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			Role:         string(u.Role),
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
		}
		if !u.LastActive.IsZero() {
			d.LastActive = u.LastActive.UTC().Format(time.RFC3339)
		}
		dtos = append(dtos, d)
	}
	return json.Marshal(dtos)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
