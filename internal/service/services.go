package service

import (
	"time"

	"github.com/dom/auth-server/internal/config"
	"github.com/dom/auth-server/internal/mailer"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/token"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Auth         *AuthService
	Session      *SessionService
	Verification *VerificationService
	Tokens       *token.Codec
}

// Dependencies are the collaborators that live outside the credential store.
type Dependencies struct {
	Hasher PasswordHasher
	Mailer mailer.Sender
	Logger logrus.FieldLogger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func NewServices(repos *repository.Repositories, cfg *config.Config, deps Dependencies) (*Services, error) {
	tokens, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Now:           deps.Clock,
	})
	if err != nil {
		return nil, err
	}

	sessions := NewSessionService(repos.Session, deps.Clock)
	codes := NewVerificationService(repos.Code, repos.Tx, deps.Clock)

	return &Services{
		Auth: NewAuthService(repos.User, sessions, codes, tokens, deps.Hasher, deps.Mailer, deps.Logger, AuthServiceConfig{
			AppOrigin: cfg.AppOrigin,
			Now:       deps.Clock,
		}),
		Session:      sessions,
		Verification: codes,
		Tokens:       tokens,
	}, nil
}
