package api

import (
	"net/http"

	"github.com/dom/auth-server/internal/api/handlers"
	"github.com/dom/auth-server/internal/api/middleware"
	"github.com/dom/auth-server/internal/config"
	"github.com/dom/auth-server/internal/service"
	"github.com/dom/auth-server/internal/token"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(services *service.Services, cfg *config.Config, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{Logger: log, NoColor: !cfg.IsDevelopment()}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AppOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handlers.NewAuthHandler(services.Auth, handlers.CookieConfig{
		Secure:     !cfg.IsDevelopment(),
		AccessTTL:  services.Tokens.TTL(token.Access),
		RefreshTTL: services.Tokens.TTL(token.Refresh),
	}, log)
	requireAuth := middleware.Auth(services.Auth, log, func(w http.ResponseWriter, err error) {
		handlers.WriteError(w, log, err)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Get("/refresh", authHandler.Refresh)
		r.Get("/email/verify/{code}", authHandler.VerifyEmail)
		r.Post("/password/forgot", authHandler.ForgotPassword)
		r.Post("/password/reset", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/user", authHandler.Me)
		})
	})

	return r
}
