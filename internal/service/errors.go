package service

import "github.com/dom/auth-server/internal/domain"

var (
	ErrUsernameTaken = domain.NewError(domain.ErrConflict, "Username already in use")
	ErrEmailTaken    = domain.NewError(domain.ErrConflict, "Email already in use")
	ErrAccountExists = domain.NewError(domain.ErrConflict, "Username or email already in use")

	// ErrInvalidCredentials is returned for both unknown users and wrong passwords.
	ErrInvalidCredentials  = domain.NewError(domain.ErrUnauthorized, "Invalid credentials")
	ErrUnknownEmail        = domain.NewError(domain.ErrUnauthorized, "User not found")
	ErrInvalidToken        = domain.NewError(domain.ErrUnauthorized, "Invalid token")
	ErrInvalidRefreshToken = domain.NewError(domain.ErrUnauthorized, "Invalid refresh token")
	ErrMissingRefreshToken = domain.NewError(domain.ErrUnauthorized, "Missing refresh token")
	ErrSessionExpired      = domain.NewError(domain.ErrUnauthorized, "Session expired")

	ErrUserNotFound         = domain.NewError(domain.ErrNotFound, "User not found")
	ErrInvalidOrExpiredCode = domain.NewError(domain.ErrNotFound, "Invalid or expired verification code")

	ErrTooManyRequests = domain.NewError(domain.ErrTooManyRequests, "Too many requests, please try again later")
)
