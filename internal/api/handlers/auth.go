package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dom/auth-server/internal/api/middleware"
	"github.com/dom/auth-server/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	authService *service.AuthService
	cookies     CookieConfig
	validate    *validator.Validate
	log         logrus.FieldLogger
}

func NewAuthHandler(authService *service.AuthService, cookies CookieConfig, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		validate:    newValidator(),
		log:         log,
	}
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=50"`
	Username string `json:"username" validate:"required,min=4,max=15,username,reserved"`
	Email    string `json:"email" validate:"required,max=255,email"`
	Password string `json:"password" validate:"required,min=6,max=255"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required,max=255"`
	Password        string `json:"password" validate:"required,max=255"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=255,email"`
}

type ResetPasswordRequest struct {
	Code     string `json:"code" validate:"required,min=1,max=24"`
	Password string `json:"password" validate:"required,min=6,max=255"`
}

type verifyEmailRequest struct {
	Code string `json:"code" validate:"required,min=1,max=24"`
}

var errInvalidBody = &ValidationError{Fields: map[string]string{"body": "Invalid request body"}}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := h.decode(r, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if err := validate(h.validate, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}

	result, err := h.authService.Signup(r.Context(), service.SignupInput{
		Name:      req.Name,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	h.cookies.setAuth(w, result.AccessToken, result.RefreshToken)
	writeJSON(w, http.StatusCreated, result.User)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}
	req.UsernameOrEmail = strings.TrimSpace(req.UsernameOrEmail)
	req.Password = strings.TrimSpace(req.Password)
	if err := validate(h.validate, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		UsernameOrEmail: req.UsernameOrEmail,
		Password:        req.Password,
		UserAgent:       r.UserAgent(),
	})
	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	h.cookies.setAuth(w, result.AccessToken, result.RefreshToken)
	writeJSON(w, http.StatusOK, result.User)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(r.Context(), middleware.AccessToken(r))

	h.cookies.clear(w)
	writeMessage(w, http.StatusOK, "Logout successful")
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}

	result, err := h.authService.Refresh(r.Context(), refreshToken)
	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	if result.RefreshToken != "" {
		h.cookies.setRefresh(w, result.RefreshToken)
	}
	h.cookies.setAccess(w, result.AccessToken)
	writeMessage(w, http.StatusOK, "Access token refreshed")
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	req := verifyEmailRequest{Code: chi.URLParam(r, "code")}
	if err := validate(h.validate, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}

	if _, err := h.authService.VerifyEmail(r.Context(), req.Code); err != nil {
		WriteError(w, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email was verified")
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := h.decode(r, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(h.validate, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}

	if _, err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		WriteError(w, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset email sent")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := h.decode(r, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}
	req.Password = strings.TrimSpace(req.Password)
	if err := validate(h.validate, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}

	if _, err := h.authService.ResetPassword(r.Context(), service.ResetPasswordInput{
		Code:     req.Code,
		Password: req.Password,
	}); err != nil {
		WriteError(w, h.log, err)
		return
	}

	h.cookies.clear(w)
	writeMessage(w, http.StatusOK, "Password reset successful")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		WriteError(w, h.log, service.ErrInvalidToken)
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		WriteError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errInvalidBody, err)
	}
	return nil
}
