package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/mailer"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PasswordHasher is the one-way hashing collaborator.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) bool
}

type AuthService struct {
	users     repository.UserRepository
	sessions  *SessionService
	codes     *VerificationService
	tokens    *token.Codec
	hasher    PasswordHasher
	mailer    mailer.Sender
	appOrigin string
	log       logrus.FieldLogger
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type AuthServiceConfig struct {
	AppOrigin string
	Now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions *SessionService,
	codes *VerificationService,
	tokens *token.Codec,
	hasher PasswordHasher,
	mail mailer.Sender,
	log logrus.FieldLogger,
	cfg AuthServiceConfig,
) *AuthService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		codes:     codes,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    mail,
		appOrigin: strings.TrimRight(cfg.AppOrigin, "/"),
		log:       log,
		now:       cfg.Now,
	}
}

type SignupInput struct {
	Name      string
	Username  string
	Email     string
	Password  string
	UserAgent string
}

type LoginInput struct {
	UsernameOrEmail string
	Password        string
	UserAgent       string
}

type ResetPasswordInput struct {
	Code     string
	Password string
}

// AuthResult is returned by signup and login. User never carries the password hash.
type AuthResult struct {
	User         *domain.User
	Session      *domain.Session
	AccessToken  string
	RefreshToken string
}

// RefreshResult carries a new refresh token only when the session was renewed.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

type PasswordResetResult struct {
	URL       string
	EmailID   string
	ExpiresAt time.Time
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	taken, err := s.users.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, domain.Internal("Failed to check username", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, domain.Internal("Failed to check email", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, domain.Internal("Failed to hash password", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         input.Name,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race against a concurrent signup with the same username or email.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, domain.Internal("Failed to create user", err)
	}

	code, err := s.codes.Issue(ctx, user.ID, domain.CodeEmailVerification, domain.EmailVerificationTTL)
	if err != nil {
		return nil, err
	}
	s.sendVerificationEmail(ctx, user, code)

	return s.startSession(ctx, user, input.UserAgent)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.users.GetByUsernameOrEmail(ctx, input.UsernameOrEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown accounts still cost one comparison.
			s.hasher.Compare(input.Password, s.unknownUserHash())
			return nil, ErrInvalidCredentials
		}
		return nil, domain.Internal("Failed to look up user", err)
	}

	if !s.hasher.Compare(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user, input.UserAgent)
}

// unknownUserHash is computed once with the configured hasher so it carries the same cost.
func (s *AuthService) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("unknown-user-placeholder")
		if err != nil {
			s.log.WithError(err).Warn("failed to prepare placeholder password hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	claims, err := s.tokens.Verify(refreshToken, token.Refresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	session, err := s.sessions.FindActive(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}

	session, rotated, err := s.sessions.RenewIfNearExpiry(ctx, session)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{}
	if rotated {
		if result.RefreshToken, err = s.signRefresh(session); err != nil {
			return nil, err
		}
		s.log.WithField("session_id", session.ID).Debug("session renewed")
	}
	if result.AccessToken, err = s.signAccess(session); err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyEmail marks the code owner verified. The code is deleted only after the update lands.
func (s *AuthService) VerifyEmail(ctx context.Context, code string) (*domain.User, error) {
	var updated *domain.User
	verified := true

	_, err := s.codes.Consume(ctx, code, domain.CodeEmailVerification, func(ctx context.Context, userID uuid.UUID) error {
		user, err := s.users.Update(ctx, userID, domain.UserPatch{Verified: &verified})
		if err != nil {
			return domain.Internal("Failed to verify email", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Sanitized(), nil
}

// ForgotPassword issues a reset code and mails the link. Delivery failure is fatal here.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*PasswordResetResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownEmail
		}
		return nil, domain.Internal("Failed to look up user", err)
	}

	code, err := s.codes.Issue(ctx, user.ID, domain.CodePasswordReset, domain.PasswordResetTTL)
	if err != nil {
		return nil, err
	}

	link := s.passwordResetURL(code)
	emailID, err := s.mailer.Send(ctx, mailer.PasswordReset(user.Email, link))
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("password reset email failed")
		return nil, domain.Internal("Failed to send password reset email", err)
	}

	return &PasswordResetResult{
		URL:       link,
		EmailID:   emailID,
		ExpiresAt: code.ExpiresAt,
	}, nil
}

// ResetPassword replaces the password of the code owner and ends all of their sessions.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) (*domain.User, error) {
	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, domain.Internal("Failed to hash password", err)
	}

	var updated *domain.User
	_, err = s.codes.Consume(ctx, input.Code, domain.CodePasswordReset, func(ctx context.Context, userID uuid.UUID) error {
		user, err := s.users.Update(ctx, userID, domain.UserPatch{PasswordHash: &hashedPassword})
		if err != nil {
			return domain.Internal("Failed to reset password", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.DeleteAllForUser(ctx, updated.ID); err != nil {
		return nil, err
	}
	return updated.Sanitized(), nil
}

// Logout deletes the session named by the access token, if any. It never fails:
// an expired or unreadable token simply has nothing to end.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	claims, err := s.tokens.Inspect(accessToken, token.Access)
	if err != nil {
		return
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		s.log.WithError(err).WithField("session_id", claims.SessionID).Warn("logout failed to delete session")
	}
}

// Authenticate verifies an access token presented on a protected request.
func (s *AuthService) Authenticate(accessToken string) (*token.Claims, error) {
	claims, err := s.tokens.Verify(accessToken, token.Access)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, domain.Internal("Failed to load user", err)
	}
	return user.Sanitized(), nil
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, userAgent string) (*AuthResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signRefresh(session)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.signAccess(session)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user.Sanitized(),
		Session:      session,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthService) signAccess(session *domain.Session) (string, error) {
	accessToken, err := s.tokens.Sign(token.Claims{UserID: session.UserID, SessionID: session.ID}, token.Access)
	if err != nil {
		return "", domain.Internal("Failed to sign access token", err)
	}
	return accessToken, nil
}

// signRefresh ties the refresh token lifetime to the session's remaining lifetime.
func (s *AuthService) signRefresh(session *domain.Session) (string, error) {
	refreshToken, err := s.tokens.Sign(
		token.Claims{SessionID: session.ID},
		token.Refresh,
		token.WithExpiry(session.ExpiresAt.Sub(s.now())),
	)
	if err != nil {
		return "", domain.Internal("Failed to sign refresh token", err)
	}
	return refreshToken, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *domain.User, code *domain.VerificationCode) {
	link := fmt.Sprintf("%s/email/verify/%s", s.appOrigin, url.PathEscape(code.ID))
	if _, err := s.mailer.Send(ctx, mailer.VerifyEmail(user.Email, link)); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("verification email failed")
	}
}

func (s *AuthService) passwordResetURL(code *domain.VerificationCode) string {
	q := url.Values{}
	q.Set("code", code.ID)
	q.Set("exp", fmt.Sprintf("%d", code.ExpiresAt.UnixMilli()))
	return fmt.Sprintf("%s/password/reset?%s", s.appOrigin, q.Encode())
}
