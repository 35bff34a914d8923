// Package audit keeps a capped, append-only log of admin actions. It is a
// side-effect sink: the vault writes to it but never reads it back for any
// decision.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arsen085/admin-vault/internal/errs"
	"github.com/arsen085/admin-vault/internal/model"
	"github.com/arsen085/admin-vault/internal/storage"
)

// DefaultCap is how many entries survive; older ones are silently dropped.
const DefaultCap = 100

const storageKey = "admin_audit_log"

// Log records admin actions into the KV store.
type Log struct {
	kv  storage.KV
	log *zap.Logger
	max int
	now func() time.Time

	mu sync.Mutex
}

// New constructs a Log. maxEntries below 1 falls back to DefaultCap.
func New(kv storage.KV, logger *zap.Logger, maxEntries int) *Log {
	if maxEntries < 1 {
		maxEntries = DefaultCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{kv: kv, log: logger, max: maxEntries, now: time.Now}
}

// Record appends an entry, stamping it with the current time. A failed
// write is logged and swallowed: audit must never block the action it
// describes.
func (l *Log) Record(ctx context.Context, userID, username, action, target string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load(ctx)
	entries = append(entries, model.AuditEntry{
		UserID:    userID,
		Username:  username,
		Action:    action,
		Target:    target,
		Timestamp: l.now(),
	})
	if len(entries) > l.max {
		entries = entries[len(entries)-l.max:]
	}

	b, err := json.Marshal(entries)
	if err != nil {
		l.log.Error("audit: encode", zap.Error(err))
		return
	}
	if err := l.kv.Set(ctx, storageKey, b); err != nil {
		l.log.Error("audit: persist", zap.Error(err))
	}
}

// Entries returns the stored log, oldest first. Malformed or absent state
// reads as empty.
func (l *Log) Entries(ctx context.Context) []model.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *Log) load(ctx context.Context) []model.AuditEntry {
	b, err := l.kv.Get(ctx, storageKey)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			l.log.Warn("audit: read", zap.Error(err))
		}
		return nil
	}
	var entries []model.AuditEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		l.log.Warn("audit: discarding malformed log", zap.Error(err))
		return nil
	}
	return entries
}
