package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/taskgate/internal/database"
	"github.com/sandeepkv93/taskgate/internal/repository"
	"github.com/sandeepkv93/taskgate/internal/session"
)

const testSecret = "service-test-secret-0123456789abcdef"

func newServiceDBForTest(t *testing.T) *gorm.DB {
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

type authFixture struct {
	db       *gorm.DB
	users    repository.UserRepository
	creds    repository.CredentialRepository
	sessions *session.ServerStore
	auth     *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := newServiceDBForTest(t)
	users := repository.NewUserRepository(db)
	creds := repository.NewCredentialRepository(db)
	sessions := session.NewServerStore(repository.NewSessionRepository(db), users, session.ServerStoreOptions{
		Secret: testSecret,
		TTL:    7 * 24 * time.Hour,
	})
	return &authFixture{
		db:       db,
		users:    users,
		creds:    creds,
		sessions: sessions,
		auth:     NewAuthService(db, users, creds, sessions),
	}
}

func (fx *authFixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := fx.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
