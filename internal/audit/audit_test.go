package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arsen085/admin-vault/internal/storage/memory"
)

func TestLog_RecordAndReadBack(t *testing.T) {
	t.Parallel()

	kv := memory.New()
	l := New(kv, nil, 10)
	ctx := context.Background()

	l.Record(ctx, "u1", "admin", "login", "")
	l.Record(ctx, "u1", "admin", "delete_user", "u2")

	got := l.Entries(ctx)
	if len(got) != 2 {
		t.Fatalf("entries=%d, want 2", len(got))
	}
	if got[0].Action != "login" || got[1].Action != "delete_user" {
		t.Fatalf("order wrong: %+v", got)
	}
	if got[1].Target != "u2" {
		t.Fatalf("target=%q, want u2", got[1].Target)
	}
	if got[0].Timestamp.IsZero() {
		t.Fatalf("timestamp not stamped")
	}
}

func TestLog_CapDropsOldest(t *testing.T) {
	t.Parallel()

	kv := memory.New()
	l := New(kv, nil, 5)
	l.now = func() time.Time { return time.Unix(42, 0) }
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		l.Record(ctx, "u1", "admin", fmt.Sprintf("action-%d", i), "")
	}

	got := l.Entries(ctx)
	if len(got) != 5 {
		t.Fatalf("entries=%d, want cap 5", len(got))
	}
	if got[0].Action != "action-3" || got[4].Action != "action-7" {
		t.Fatalf("wrong window: first=%s last=%s", got[0].Action, got[4].Action)
	}
}

func TestLog_MalformedStateReadsAsEmpty(t *testing.T) {
	t.Parallel()

	kv := memory.New()
	ctx := context.Background()
	if err := kv.Set(ctx, "admin_audit_log", []byte("{broken")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l := New(kv, nil, 0)
	if got := l.Entries(ctx); len(got) != 0 {
		t.Fatalf("malformed log must read as empty, got %d", len(got))
	}

	// And a subsequent record starts a fresh log.
	l.Record(ctx, "u1", "admin", "login", "")
	if got := l.Entries(ctx); len(got) != 1 {
		t.Fatalf("entries=%d, want 1", len(got))
	}
}
