package service_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/auth-server/internal/config"
	"github.com/dom/auth-server/internal/logging"
	"github.com/dom/auth-server/internal/mailer"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/repository/memory"
	"github.com/dom/auth-server/internal/security"
	"github.com/dom/auth-server/internal/service"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingMailer keeps every message it is asked to send and fails when err is set.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *recordingMailer) last(t *testing.T) mailer.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no message sent")
	return m.sent[len(m.sent)-1]
}

type fixture struct {
	services *service.Services
	auth     *service.AuthService
	repos    *repository.Repositories
	clock    *fakeClock
	mail     *recordingMailer
	cfg      *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		AppOrigin:        "http://localhost:5173",
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  30 * 24 * time.Hour,
	}
}

// fixtureOptions overrides the collaborators newFixture wires by default.
type fixtureOptions struct {
	hasher service.PasswordHasher
	repos  func(*repository.Repositories)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, fixtureOptions{})
}

func newFixtureWith(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	cfg := testConfig()
	clock := newFakeClock()
	mail := &recordingMailer{}
	repos := memory.NewRepositories(memory.NewStore())
	if opts.repos != nil {
		opts.repos(repos)
	}
	var hasher service.PasswordHasher = security.NewBcryptHasher(bcrypt.MinCost)
	if opts.hasher != nil {
		hasher = opts.hasher
	}

	services, err := service.NewServices(repos, cfg, service.Dependencies{
		Hasher: hasher,
		Mailer: mail,
		Logger: logging.Discard(),
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	return &fixture{
		services: services,
		auth:     services.Auth,
		repos:    repos,
		clock:    clock,
		mail:     mail,
		cfg:      cfg,
	}
}

func (f *fixture) signup(t *testing.T, username, email, password string) *service.AuthResult {
	t.Helper()
	result, err := f.auth.Signup(context.Background(), service.SignupInput{
		Name:      strings.ToUpper(username[:1]) + username[1:],
		Username:  username,
		Email:     email,
		Password:  password,
		UserAgent: "go-test",
	})
	require.NoError(t, err)
	return result
}

// verificationCode extracts the code from the last verification email.
func (f *fixture) verificationCode(t *testing.T) string {
	t.Helper()
	link := f.mail.last(t).Text
	idx := strings.LastIndex(link, "/email/verify/")
	require.NotEqual(t, -1, idx, "no verify link in %q", link)
	return link[idx+len("/email/verify/"):]
}

// resetCode extracts the code from a password reset link.
func resetCode(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

var errMailDown = errors.New("mail provider unavailable")

// countingHasher records every comparison it makes.
type countingHasher struct {
	service.PasswordHasher
	mu       sync.Mutex
	compared []string
}

func (h *countingHasher) Compare(password, hash string) bool {
	h.mu.Lock()
	h.compared = append(h.compared, hash)
	h.mu.Unlock()
	return h.PasswordHasher.Compare(password, hash)
}

func (h *countingHasher) comparisons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.compared...)
}
