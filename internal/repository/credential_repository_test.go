package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

func TestCredentialRepositoryOnePerProvider(t *testing.T) {
	ctx := context.Background()
	db := newRepositoryDBForTest(t)
	users := NewUserRepository(db)
	repo := NewCredentialRepository(db)

	if err := users.Create(ctx, &domain.User{ID: "u-1", Email: "a@b.com", Name: "A"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	first := &domain.Credential{ID: "c-1", UserID: "u-1", ProviderID: domain.ProviderCredential, PasswordHash: "h1"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create credential: %v", err)
	}
	second := &domain.Credential{ID: "c-2", UserID: "u-1", ProviderID: domain.ProviderCredential, PasswordHash: "h2"}
	if err := repo.Create(ctx, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second credential row, got %v", err)
	}

	got, err := repo.FindByUserAndProvider(ctx, "u-1", domain.ProviderCredential)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PasswordHash != "h1" {
		t.Fatalf("unexpected credential %+v", got)
	}
	if _, err := repo.FindByUserAndProvider(ctx, "u-1", "github"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}
