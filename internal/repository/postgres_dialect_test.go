package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

// newPostgresMockDB runs gorm's postgres dialect over sqlmock so driver
// errors can be injected the way pgx reports them.
func newPostgresMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New err: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open gorm over sqlmock: %v", err)
	}
	return db, mock
}

func TestSessionRepositoryPostgresUniqueViolation(t *testing.T) {
	db, mock := newPostgresMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "sessions"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := NewSessionRepository(db).Create(context.Background(), &domain.Session{
		ID:        "s-1",
		UserID:    "u-1",
		TokenHash: "dup",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepositoryPostgresNoRows(t *testing.T) {
	db, mock := newPostgresMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "sessions" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at"}))

	_, err := NewSessionRepository(db).FindValidByHash(context.Background(), "missing", time.Now())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepositoryPostgresCleanupReportsRows(t *testing.T) {
	db, mock := newPostgresMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "sessions" WHERE`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := NewSessionRepository(db).CleanupExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepositoryPostgresOtherErrorsPassThrough(t *testing.T) {
	db, mock := newPostgresMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "sessions" WHERE`).
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

	_, err := NewSessionRepository(db).FindValidByHash(context.Background(), "h", time.Now())
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "57014" {
		t.Fatalf("expected the driver error to surface, got %v", err)
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrDuplicate) {
		t.Fatalf("timeout must not be mistaken for a domain error: %v", err)
	}
}
