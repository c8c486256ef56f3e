// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth

import (
	"net/http"

	"github.com/arboria/treeatlas/internal/platform/apperr"
)

// # Error Taxonomy
//
// The closed set of authentication outcomes. Callers switch on the
// machine-readable code, never on message text.

// Machine-readable error codes of the authentication domain.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMFARequired        = "MFA_REQUIRED"
	CodeInvalidMFACode     = "INVALID_MFA_CODE"
	CodeMFAAlreadyEnabled  = "MFA_ALREADY_ENABLED"
	CodeMFANotEnabled      = "MFA_NOT_ENABLED"
	CodeMFANotConfigured   = "MFA_NOT_CONFIGURED"
	CodeInvalidPassword    = "INVALID_PASSWORD"
)

// errInvalidCredentials is returned for missing input, unknown email, and
// wrong password alike. The message is identical across all three causes to
// resist user enumeration; the precise reason goes into the audit log only.
func errInvalidCredentials() *apperr.AppError {
	return apperr.New(CodeInvalidCredentials, "Invalid email or password", http.StatusUnauthorized)
}

// errMFARequired signals the client to prompt for a second factor. It only
// fires after the password check succeeded, so it leaks nothing.
func errMFARequired() *apperr.AppError {
	return apperr.New(CodeMFARequired, "Multi-factor authentication code required", http.StatusUnauthorized)
}

// errInvalidMFACodeLogin is the login-time rejection of a TOTP/backup code.
func errInvalidMFACodeLogin() *apperr.AppError {
	return apperr.New(CodeInvalidMFACode, "Invalid authentication code", http.StatusUnauthorized)
}

// errInvalidMFACodeVerify is the enrollment-time rejection. The caller is
// already authenticated, so this is a 400 rather than a 401.
func errInvalidMFACodeVerify() *apperr.AppError {
	return apperr.New(CodeInvalidMFACode, "Invalid authentication code", http.StatusBadRequest)
}

// errMFAAlreadyEnabled rejects a setup attempt on an already-protected account.
func errMFAAlreadyEnabled() *apperr.AppError {
	return apperr.New(CodeMFAAlreadyEnabled, "Multi-factor authentication is already enabled", http.StatusBadRequest)
}

// errMFANotEnabled rejects a disable attempt when MFA is off.
func errMFANotEnabled() *apperr.AppError {
	return apperr.New(CodeMFANotEnabled, "Multi-factor authentication is not enabled", http.StatusBadRequest)
}

// errMFANotConfigured rejects a verify attempt with no pending secret.
func errMFANotConfigured() *apperr.AppError {
	return apperr.New(CodeMFANotConfigured, "Multi-factor authentication has not been set up", http.StatusBadRequest)
}

// errInvalidPassword is the re-authentication failure during disable.
// 403 rather than 401: the session itself is valid.
func errInvalidPassword() *apperr.AppError {
	return apperr.New(CodeInvalidPassword, "Invalid password", http.StatusForbidden)
}
