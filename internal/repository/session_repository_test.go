package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

func TestSessionRepositoryValidity(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newRepositoryDBForTest(t))
	now := time.Now().UTC()

	rows := []*domain.Session{
		{ID: "s-live", UserID: "u-1", TokenHash: "live", ExpiresAt: now.Add(time.Hour)},
		{ID: "s-expired", UserID: "u-1", TokenHash: "expired", ExpiresAt: now.Add(-time.Minute)},
	}
	for _, s := range rows {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.ID, err)
		}
	}

	got, err := repo.FindValidByHash(ctx, "live", now)
	if err != nil {
		t.Fatalf("find live: %v", err)
	}
	if got.UserID != "u-1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if _, err := repo.FindValidByHash(ctx, "expired", now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be absent, got %v", err)
	}
	if _, err := repo.FindValidByHash(ctx, "unknown", now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected unknown session to be absent, got %v", err)
	}
}

func TestSessionRepositoryRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newRepositoryDBForTest(t))
	now := time.Now().UTC()
	if err := repo.Create(ctx, &domain.Session{ID: "s-1", UserID: "u-1", TokenHash: "h", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	revoked, err := repo.RevokeByHash(ctx, "h")
	if err != nil || !revoked {
		t.Fatalf("expected first revoke to succeed, revoked=%v err=%v", revoked, err)
	}
	revoked, err = repo.RevokeByHash(ctx, "h")
	if err != nil || revoked {
		t.Fatalf("expected second revoke to be a no-op, revoked=%v err=%v", revoked, err)
	}
	if _, err := repo.FindValidByHash(ctx, "h", now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session to be absent, got %v", err)
	}
}

func TestSessionRepositoryCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newRepositoryDBForTest(t))
	now := time.Now().UTC()
	for i, exp := range []time.Duration{-2 * time.Hour, -time.Minute, time.Hour} {
		s := &domain.Session{ID: string(rune('a' + i)), UserID: "u-1", TokenHash: string(rune('A' + i)), ExpiresAt: now.Add(exp)}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := repo.DeleteExpiredByHash(ctx, "A", now); err != nil {
		t.Fatalf("delete expired by hash: %v", err)
	}
	n, err := repo.CleanupExpired(ctx, now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining expired row removed, got %d", n)
	}
	if _, err := repo.FindValidByHash(ctx, "C", now); err != nil {
		t.Fatalf("expected live session to survive cleanup: %v", err)
	}
}
