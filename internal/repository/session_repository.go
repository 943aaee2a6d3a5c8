package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/observability"

	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.Session, error)
	RevokeByHash(ctx context.Context, hash string) (bool, error)
	DeleteExpiredByHash(ctx context.Context, hash string, now time.Time) error
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	observability.RecordRepositoryOperation(ctx, "session", "create", outcome(err))
	return translate(err, ErrSessionNotFound)
}

func (r *GormSessionRepository) FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now).
		First(&s).Error
	observability.RecordRepositoryOperation(ctx, "session", "find_valid_by_hash", outcome(err))
	if err != nil {
		return nil, translate(err, ErrSessionNotFound)
	}
	return &s, nil
}

// RevokeByHash reports whether an active row was revoked. Revoking an
// unknown or already revoked token is not an error.
func (r *GormSessionRepository) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", now)
	observability.RecordRepositoryOperation(ctx, "session", "revoke_by_hash", outcome(res.Error))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) DeleteExpiredByHash(ctx context.Context, hash string, now time.Time) error {
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at <= ?", hash, now).
		Delete(&domain.Session{}).Error
	observability.RecordRepositoryOperation(ctx, "session", "delete_expired_by_hash", outcome(err))
	return err
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ? OR revoked_at IS NOT NULL", now).
		Delete(&domain.Session{})
	observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", outcome(res.Error))
	return res.RowsAffected, res.Error
}
