package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/database"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/repository"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/session"
)

const (
	minPasswordLen = 6

	invalidEmailDetail  = "Please enter a valid email address"
	shortPasswordDetail = "Password must be at least 6 characters"
	missingNameDetail   = "Name is required"
)

// AuthService turns an email and password into a session record.
type AuthService struct {
	db          *gorm.DB
	users       repository.UserRepository
	credentials repository.CredentialRepository
	sessions    *session.ServerStore
}

func NewAuthService(db *gorm.DB, users repository.UserRepository, credentials repository.CredentialRepository, sessions *session.ServerStore) *AuthService {
	return &AuthService{db: db, users: users, credentials: credentials, sessions: sessions}
}

// Login fails with the same InvalidCredentials error whether the email is
// unknown, the credential row is missing, or the password is wrong.
func (s *AuthService) Login(ctx context.Context, email, password string, meta domain.SessionMeta) (*domain.SessionRecord, error) {
	rec, err := s.login(ctx, email, password, meta)
	observability.RecordAuthLogin(ctx, authStatus(err))
	return rec, err
}

func (s *AuthService) login(ctx context.Context, email, password string, meta domain.SessionMeta) (*domain.SessionRecord, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		security.BurnVerify(password)
		return nil, apperr.InvalidCredentials()
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	cred, err := s.credentials.FindByUserAndProvider(ctx, user.ID, domain.ProviderCredential)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		security.BurnVerify(password)
		return nil, apperr.InvalidCredentials()
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find credential: %w", err))
	}
	ok, err := security.VerifyPassword(cred.PasswordHash, password)
	if err != nil {
		// A corrupt stored hash is an operator problem, not a caller one.
		return nil, apperr.Internal(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return nil, apperr.InvalidCredentials()
	}
	rec, err := s.sessions.Issue(ctx, user, meta)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rec, nil
}

// Signup creates the user, its credential and its first session in one
// transaction.
func (s *AuthService) Signup(ctx context.Context, email, password, name string, meta domain.SessionMeta) (*domain.SessionRecord, error) {
	rec, err := s.signup(ctx, email, password, name, meta)
	observability.RecordAuthSignup(ctx, authStatus(err))
	return rec, err
}

func (s *AuthService) signup(ctx context.Context, email, password, name string, meta domain.SessionMeta) (*domain.SessionRecord, error) {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperr.EmailTaken()
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	name = strings.TrimSpace(name)
	if err := validateSignup(email, password, name); err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	var rec *domain.SessionRecord
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		user := &domain.User{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: now, UpdatedAt: now}
		if err := repository.NewUserRepository(tx).Create(ctx, user); err != nil {
			return err
		}
		cred := &domain.Credential{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			ProviderID:   domain.ProviderCredential,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repository.NewCredentialRepository(tx).Create(ctx, cred); err != nil {
			return err
		}
		issued, err := s.sessions.IssueWith(ctx, repository.NewSessionRepository(tx), user, meta)
		if err != nil {
			return err
		}
		rec = issued
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.EmailTaken()
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("signup: %w", err))
	}
	return rec, nil
}

// Logout revokes the server-side session. Unknown tokens are accepted.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	_, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		observability.RecordAuthLogout(ctx, "error")
		return apperr.Internal(err)
	}
	observability.RecordAuthLogout(ctx, "success")
	return nil
}

func validateSignup(email, password, name string) error {
	if !strings.Contains(email, "@") {
		return apperr.Validation("email", invalidEmailDetail)
	}
	if len(password) < minPasswordLen {
		return apperr.Validation("password", shortPasswordDetail)
	}
	if name == "" {
		return apperr.Validation("name", missingNameDetail)
	}
	return nil
}

func authStatus(err error) string {
	if err == nil {
		return "success"
	}
	if k := apperr.KindOf(err); k != "" && k != apperr.KindServer {
		return string(k)
	}
	return "error"
}
