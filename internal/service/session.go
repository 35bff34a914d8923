package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arsen085/admin-vault/internal/audit"
	"github.com/arsen085/admin-vault/internal/crypto"
	"github.com/arsen085/admin-vault/internal/errs"
	"github.com/arsen085/admin-vault/internal/limiter"
	"github.com/arsen085/admin-vault/internal/model"
	"github.com/arsen085/admin-vault/internal/storage"
)

const (
	sessionKey       = "admin_session"
	sessionSecretKey = "admin_session_secret"
)

// DefaultSessionMaxAge is the rolling expiry window for restored sessions.
const DefaultSessionMaxAge = 24 * time.Hour

// SessionConfig tunes the session manager.
type SessionConfig struct {
	// MaxAge is the rolling expiry window; zero means DefaultSessionMaxAge.
	MaxAge time.Duration
	// SigningKey signs the persisted session snapshot. Empty means a key
	// is provisioned in the store on first use.
	SigningKey []byte
}

// SessionManager authenticates against the credential store, tracks the
// current user for the lifetime of the process, and restores or expires
// sessions across restarts. It is the surface admin collaborators call;
// they never see a password hash.
type SessionManager struct {
	store  *UserStore
	kv     storage.KV
	engine *crypto.Engine
	aud    *audit.Log
	lim    limiter.Limiter
	log    *zap.Logger
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	key     []byte
	current *model.SessionUser
}

// NewSessionManager wires the manager. aud may be nil to disable auditing;
// lim may be nil to disable the login lockout.
func NewSessionManager(store *UserStore, kv storage.KV, engine *crypto.Engine, aud *audit.Log, lim limiter.Limiter, logger *zap.Logger, cfg SessionConfig) *SessionManager {
	if lim == nil {
		lim = limiter.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SessionManager{
		store:  store,
		kv:     kv,
		engine: engine,
		aud:    aud,
		lim:    lim,
		log:    logger,
		maxAge: maxAge,
		now:    time.Now,
		key:    cfg.SigningKey,
	}
}

// Login authenticates username/password. Unknown user and wrong password
// are indistinguishable to the caller. A legacy or below-target hash is
// rewritten in the current format before the session starts.
func (m *SessionManager) Login(ctx context.Context, username, password string) bool {
	username = strings.TrimSpace(username)

	allowed, retry, err := m.lim.Allow(ctx, username)
	if err != nil {
		m.log.Warn("session: limiter", zap.Error(err))
	}
	if !allowed {
		m.log.Info("session: login locked out",
			zap.String("username", username),
			zap.Duration("retryAfter", retry),
		)
		return false
	}

	u, found := m.store.findByUsername(username)
	if !found {
		m.noteFailure(ctx, username)
		return false
	}
	v := m.engine.VerifyHash(password, u.PasswordHash)
	if !v.IsValid {
		m.noteFailure(ctx, username)
		return false
	}
	if v.NeedsUpgrade {
		m.store.rewriteHash(ctx, u.ID, password)
	}
	if err := m.lim.Success(ctx, username); err != nil {
		m.log.Warn("session: limiter reset", zap.Error(err))
	}

	session := model.SessionUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}

	m.mu.Lock()
	m.current = &session
	m.persistSession(ctx, session, m.now())
	m.mu.Unlock()

	m.store.stampLastActive(ctx, u.ID)
	m.recordAudit(ctx, u.ID, u.Username, "login", "")
	return true
}

// Logout clears the in-memory user and the persisted snapshot.
func (m *SessionManager) Logout(ctx context.Context) {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	if cur != nil {
		m.recordAudit(ctx, cur.ID, cur.Username, "logout", "")
	}
	if err := m.kv.Delete(ctx, sessionKey); err != nil {
		m.log.Warn("session: clear", zap.Error(err))
	}
}

// Restore loads a persisted session once at startup. A snapshot inside
// the expiry window becomes the current session with its last-active time
// refreshed; anything else (absent, expired, malformed, tampered) leaves
// the manager unauthenticated and clears the stored value. Returns whether
// a session was restored.
func (m *SessionManager) Restore(ctx context.Context) bool {
	b, err := m.kv.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			m.log.Warn("session: read", zap.Error(err))
		}
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, lastActive, err := decodeSession(m.signingKey(ctx), string(b))
	if err != nil {
		m.log.Info("session: discarding unreadable snapshot", zap.Error(err))
		m.discardSession(ctx)
		return false
	}
	// A missing last-active timestamp decodes as the zero time, which is
	// always outside the window.
	if m.now().Sub(lastActive) >= m.maxAge {
		m.discardSession(ctx)
		return false
	}

	m.current = &user
	m.persistSession(ctx, user, m.now())
	return true
}

// Current returns a copy of the authenticated user's snapshot, or nil.
func (m *SessionManager) Current() *model.SessionUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cur := *m.current
	return &cur
}

// HasPermission reports whether the current user's role grants the token.
// False whenever nobody is authenticated.
func (m *SessionManager) HasPermission(perm string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.Role.Can(perm)
}

// VerifyCurrentPassword re-verifies the live stored hash of the current
// user, upgrading it on success exactly as login does. Used as a
// reauthentication gate before destructive operations.
func (m *SessionManager) VerifyCurrentPassword(ctx context.Context, password string) bool {
	cur := m.Current()
	if cur == nil {
		return false
	}
	u, found := m.store.findByID(cur.ID)
	if !found {
		return false
	}
	v := m.engine.VerifyHash(password, u.PasswordHash)
	if !v.IsValid {
		return false
	}
	if v.NeedsUpgrade {
		m.store.rewriteHash(ctx, u.ID, password)
	}
	return true
}

// InitializeAdmin creates the first super_admin on an empty store.
func (m *SessionManager) InitializeAdmin(ctx context.Context, username, email, password string) bool {
	if !m.store.Initialize(ctx, username, email, password) {
		return false
	}
	if u, ok := m.store.findByUsername(username); ok {
		m.recordAudit(ctx, u.ID, u.Username, "initialize_admin", "")
	}
	return true
}

// AddUser creates a record on behalf of the current user.
func (m *SessionManager) AddUser(ctx context.Context, username, email, password string, role model.Role) bool {
	if !m.store.AddUser(ctx, username, email, password, role) {
		return false
	}
	m.auditAsCurrent(ctx, "add_user", strings.TrimSpace(username))
	return true
}

// DeleteUser removes a record. The current user cannot delete itself, and
// the last super_admin is protected, both enforced by the store.
func (m *SessionManager) DeleteUser(ctx context.Context, id string) bool {
	currentID := ""
	if cur := m.Current(); cur != nil {
		currentID = cur.ID
	}
	if !m.store.DeleteUser(ctx, id, currentID) {
		return false
	}
	m.auditAsCurrent(ctx, "delete_user", id)
	return true
}

// UpdateUserRole changes a record's role.
func (m *SessionManager) UpdateUserRole(ctx context.Context, id string, role model.Role) bool {
	if !m.store.UpdateRole(ctx, id, role) {
		return false
	}
	m.auditAsCurrent(ctx, "update_role", id)
	return true
}

// ChangePassword re-hashes a record after verifying its old password.
func (m *SessionManager) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) bool {
	if !m.store.ChangePassword(ctx, id, oldPassword, newPassword) {
		return false
	}
	m.auditAsCurrent(ctx, "change_password", id)
	return true
}

// GetAllUsers returns the hash-stripped projection of every record.
func (m *SessionManager) GetAllUsers() []model.PublicUser {
	return m.store.ListUsers()
}

// noteFailure feeds the limiter on unknown user and wrong password alike,
// so the two stay indistinguishable from outside.
func (m *SessionManager) noteFailure(ctx context.Context, username string) {
	blocked, retry, err := m.lim.Failure(ctx, username)
	if err != nil {
		m.log.Warn("session: limiter failure", zap.Error(err))
		return
	}
	if blocked {
		m.log.Info("session: lockout engaged",
			zap.String("username", username),
			zap.Duration("retryAfter", retry),
		)
	}
}

// persistSession writes the signed snapshot. Caller holds m.mu.
func (m *SessionManager) persistSession(ctx context.Context, user model.SessionUser, lastActive time.Time) {
	raw, err := encodeSession(m.signingKey(ctx), user, lastActive)
	if err != nil {
		m.log.Error("session: encode", zap.Error(err))
		return
	}
	if err := m.kv.Set(ctx, sessionKey, []byte(raw)); err != nil {
		m.log.Warn("session: persist", zap.Error(err))
	}
}

// discardSession removes the stored snapshot. Caller holds m.mu.
func (m *SessionManager) discardSession(ctx context.Context) {
	if err := m.kv.Delete(ctx, sessionKey); err != nil {
		m.log.Warn("session: discard", zap.Error(err))
	}
}

// signingKey returns the configured key, provisioning one in the store on
// first use. Caller holds m.mu or is otherwise single-threaded; Login and
// Restore both route through here.
func (m *SessionManager) signingKey(ctx context.Context) []byte {
	if len(m.key) != 0 {
		return m.key
	}
	if b, err := m.kv.Get(ctx, sessionSecretKey); err == nil && len(b) != 0 {
		m.key = b
		return m.key
	}
	b, err := crypto.RandBytes(32)
	if err != nil {
		m.log.Error("session: generate signing key", zap.Error(err))
		// Last resort; sessions will not survive a restart.
		b = []byte("ephemeral")
	}
	if err := m.kv.Set(ctx, sessionSecretKey, b); err != nil {
		m.log.Warn("session: persist signing key", zap.Error(err))
	}
	m.key = b
	return m.key
}

// recordAudit writes an entry if auditing is enabled.
func (m *SessionManager) recordAudit(ctx context.Context, userID, username, action, target string) {
	if m.aud != nil {
		m.aud.Record(ctx, userID, username, action, target)
	}
}

// auditAsCurrent records an admin action attributed to the current user.
func (m *SessionManager) auditAsCurrent(ctx context.Context, action, target string) {
	var id, name string
	if cur := m.Current(); cur != nil {
		id, name = cur.ID, cur.Username
	}
	m.recordAudit(ctx, id, name, action, target)
}
