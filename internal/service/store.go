// Package service contains the credential store and the session manager.
// Together they form the authentication surface consumed by the admin UI.
//
// Mutating operations follow a boolean contract: validation and
// invariant-protection failures return false and leave state untouched.
// The in-memory list is canonical; every successful mutation flushes the
// whole list to the key/value store, and a failed flush is logged rather
// than surfaced, matching the fire-and-forget persistence of the original
// admin panel.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/arsen085/admin-vault/internal/crypto"
	"github.com/arsen085/admin-vault/internal/errs"
	"github.com/arsen085/admin-vault/internal/model"
	"github.com/arsen085/admin-vault/internal/storage"
)

const usersKey = "admin_users"

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 8

// UserStore owns the canonical list of user records and its invariants:
// unique usernames and emails, at least one super_admin at all times, no
// self-deletion, hashes never exposed.
type UserStore struct {
	kv     storage.KV
	engine *crypto.Engine
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	users []model.User
}

// NewUserStore constructs an empty store. Call Load before use.
func NewUserStore(kv storage.KV, engine *crypto.Engine, logger *zap.Logger) *UserStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserStore{kv: kv, engine: engine, log: logger, now: time.Now}
}

// Load reads the persisted user list into memory. Absent or malformed
// state loads as an empty list; that fallback is deliberate, so a broken
// store never blocks the admin panel from rendering fresh.
func (s *UserStore) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.kv.Get(ctx, usersKey)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Warn("user store: read failed, starting empty", zap.Error(err))
		}
		s.users = nil
		return
	}
	users, err := decodeUsers(b)
	if err != nil {
		s.log.Warn("user store: discarding malformed user list", zap.Error(err))
		s.users = nil
		return
	}
	s.users = users
}

// Initialize creates the very first account, forced to super_admin. It
// refuses to run on a non-empty store.
func (s *UserStore) Initialize(ctx context.Context, username, email, password string) bool {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(password) < MinPasswordLen {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) != 0 {
		return false
	}
	return s.append(ctx, username, email, password, model.RoleSuperAdmin)
}

// AddUser appends a record with a freshly computed hash. Username and
// email must not collide with existing records.
func (s *UserStore) AddUser(ctx context.Context, username, email, password string, role model.Role) bool {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(password) < MinPasswordLen {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Username == username || s.users[i].Email == email {
			return false
		}
	}
	return s.append(ctx, username, email, password, role)
}

// append creates and persists a record. Caller holds s.mu and has
// validated inputs.
func (s *UserStore) append(ctx context.Context, username, email, password string, role model.Role) bool {
	hash, err := s.engine.CreateHash(password)
	if err != nil {
		s.log.Error("user store: hash", zap.Error(err))
		return false
	}
	id, err := uuid.NewV4()
	if err != nil {
		s.log.Error("user store: uuid", zap.Error(err))
		return false
	}
	s.users = append(s.users, model.User{
		ID:           id.String(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	s.save(ctx)
	return true
}

// DeleteUser removes the record with the given id. currentUserID is the
// authenticated caller; deleting yourself is refused, as is deleting the
// only super_admin.
func (s *UserStore) DeleteUser(ctx context.Context, id, currentUserID string) bool {
	if id == "" || id == currentUserID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return false
	}
	if s.users[idx].Role == model.RoleSuperAdmin && s.countRole(model.RoleSuperAdmin) == 1 {
		return false
	}
	s.users = append(s.users[:idx], s.users[idx+1:]...)
	s.save(ctx)
	return true
}

// UpdateRole changes a record's role in place. Demoting the only
// super_admin is refused.
func (s *UserStore) UpdateRole(ctx context.Context, id string, newRole model.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return false
	}
	if s.users[idx].Role == model.RoleSuperAdmin &&
		newRole != model.RoleSuperAdmin &&
		s.countRole(model.RoleSuperAdmin) == 1 {
		return false
	}
	s.users[idx].Role = newRole
	s.save(ctx)
	return true
}

// ChangePassword re-hashes the record after verifying the old password.
// The new hash is always in the current format, whatever the old one was.
func (s *UserStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) bool {
	if len(newPassword) < MinPasswordLen {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return false
	}
	if !s.engine.VerifyHash(oldPassword, s.users[idx].PasswordHash).IsValid {
		return false
	}
	hash, err := s.engine.CreateHash(newPassword)
	if err != nil {
		s.log.Error("user store: hash", zap.Error(err))
		return false
	}
	s.users[idx].PasswordHash = hash
	s.save(ctx)
	return true
}

// ListUsers returns the hash-stripped projection of every record.
func (s *UserStore) ListUsers() []model.PublicUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PublicUser, 0, len(s.users))
	for i := range s.users {
		out = append(out, s.users[i].Public())
	}
	return out
}

// Count returns the number of records.
func (s *UserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// findByUsername returns a copy of the record with the given (trimmed)
// username. Hash included; for in-package use only.
func (s *UserStore) findByUsername(username string) (model.User, bool) {
	username = strings.TrimSpace(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Username == username {
			return s.users[i], true
		}
	}
	return model.User{}, false
}

// findByID returns a copy of the record with the given id.
func (s *UserStore) findByID(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return model.User{}, false
	}
	return s.users[idx], true
}

// rewriteHash stores a current-format hash for the given password,
// implementing upgrade-on-verify.
func (s *UserStore) rewriteHash(ctx context.Context, id, password string) {
	hash, err := s.engine.CreateHash(password)
	if err != nil {
		s.log.Error("user store: upgrade hash", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return
	}
	s.users[idx].PasswordHash = hash
	s.save(ctx)
}

// stampLastActive records a successful login on the user record.
func (s *UserStore) stampLastActive(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return
	}
	s.users[idx].LastActive = s.now()
	s.save(ctx)
}

// indexByID returns the record index or -1. Caller holds s.mu.
func (s *UserStore) indexByID(id string) int {
	for i := range s.users {
		if s.users[i].ID == id {
			return i
		}
	}
	return -1
}

// countRole counts records with the role. Caller holds s.mu.
func (s *UserStore) countRole(role model.Role) int {
	n := 0
	for i := range s.users {
		if s.users[i].Role == role {
			n++
		}
	}
	return n
}

// save flushes the whole list. Caller holds s.mu. Errors are logged; the
// in-memory state stays canonical either way.
func (s *UserStore) save(ctx context.Context) {
	b, err := encodeUsers(s.users)
	if err != nil {
		s.log.Error("user store: encode", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, usersKey, b); err != nil {
		s.log.Error("user store: persist", zap.Error(err))
	}
}
