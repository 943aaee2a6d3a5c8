package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/taskgate/internal/database"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/repository"
)

const testSecret = "session-test-secret-0123456789abcdef"

func newSessionDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time           { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type serverFixture struct {
	db    *gorm.DB
	users repository.UserRepository
	repo  repository.SessionRepository
	cache *MemoryCache
	clock *clock
	store *ServerStore
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	db := newSessionDBForTest(t)
	fx := &serverFixture{
		db:    db,
		users: repository.NewUserRepository(db),
		repo:  repository.NewSessionRepository(db),
		cache: NewMemoryCache(),
		clock: &clock{now: time.Now().UTC()},
	}
	fx.cache.now = fx.clock.Now
	fx.store = NewServerStore(fx.repo, fx.users, ServerStoreOptions{
		Secret:   testSecret,
		TTL:      7 * 24 * time.Hour,
		Cache:    fx.cache,
		CacheTTL: time.Minute,
		Now:      fx.clock.Now,
	})
	return fx
}

func (fx *serverFixture) seedUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Email: email, Name: "Test User"}
	if err := fx.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func testRecord(now time.Time) *domain.SessionRecord {
	return &domain.SessionRecord{
		User:      domain.Identity{ID: "u-1", Email: "a@example.com", Name: "A"},
		Token:     "tok-1",
		ExpiresAt: now.Add(time.Hour),
	}
}
