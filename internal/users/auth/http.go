// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

/*
Package auth provides the HTTP delivery layer for the authentication core.

It implements the gateway for the login, logout, session-introspection, and
MFA lifecycle endpoints.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Issues the session JWT and injects/clears the session cookies.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arboria/treeatlas/internal/platform/constants"
	"github.com/arboria/treeatlas/internal/platform/middleware"
	requestutil "github.com/arboria/treeatlas/internal/platform/request"
	"github.com/arboria/treeatlas/internal/platform/respond"
	"github.com/arboria/treeatlas/internal/platform/sec"
	"github.com/arboria/treeatlas/internal/platform/validate"
)

// # Definitions & Constructors

// totpCodeRegex matches a well-formed 6-digit TOTP code.
var totpCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// backupCodeRegex matches a well-formed backup code, dashes optional.
var backupCodeRegex = regexp.MustCompile(`^[0-9A-Za-z]{4}-?[0-9A-Za-z]{4}-?[0-9A-Za-z]{4}$`)

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
	sessions    *sec.SessionService
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, sessions *sec.SessionService) *Handler {
	return &Handler{authService: service, sessions: sessions}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login       : Credential + MFA exchange, sets the session cookie.
//   - POST /logout      : Clears the session cookies, audits when a session was valid.
//   - GET  /session     : Returns the current session claim.
//   - POST /mfa/setup   : Starts TOTP enrollment.
//   - POST /mfa/verify  : Confirms enrollment and enables MFA.
//   - POST /mfa/disable : Turns MFA off after password re-authentication.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Get("/session", handler.session)
		r.Post("/mfa/setup", handler.mfaSetup)
		r.Post("/mfa/verify", handler.mfaVerify)
		r.Post("/mfa/disable", handler.mfaDisable)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type mfaVerifyRequest struct {
	Code string `json:"code"`
}

type mfaDisableRequest struct {
	Password string `json:"password"`
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Runs the full authorize flow (credentials, lockout, MFA) and,
on success, issues a signed session JWT delivered as an httpOnly cookie.

Request:
  - Body: loginRequest (Email, Password, TOTPCode?)

Response:
  - 200: Identity claim; session cookie set
  - 401: INVALID_CREDENTIALS / MFA_REQUIRED / INVALID_MFA_CODE
  - 429: RATE_LIMITED: Account+IP locked out
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// Presence checks intentionally happen in the service so that missing
	// fields produce the same generic 401 as any other credential failure.
	identity, err := handler.authService.Authorize(request.Context(), AuthorizeInput{
		Email:     input.Email,
		Password:  input.Password,
		TOTPCode:  input.TOTPCode,
		IPAddress: getClientIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.sessions.Issue(identity.ID, identity.Email, identity.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.sessions.WriteCookie(writer, token)

	respond.OK(writer, identity)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Clears both session cookie variants. When the request carried
a valid session, the termination is audited; otherwise logout is an
idempotent no-op.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if claims := handler.sessions.VerifyRequest(request); claims != nil {
		if err := handler.authService.Logout(request.Context(), claims.UserID, getClientIP(request), request.UserAgent()); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	handler.sessions.ClearCookies(writer)

	respond.NoContent(writer)
}

/*
Session returns the identity claim of the current session.

GET /api/v1/auth/session

Response:
  - 200: Identity claim
  - 401: ErrUnauthorized: No valid session
*/
func (handler *Handler) session(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
	})
}

/*
MFASetup starts TOTP enrollment for the authenticated user.

POST /api/v1/auth/mfa/setup

Description: Returns the secret, a QR provisioning image, and 10 one-time
backup codes. The codes are shown exactly once.

Response:
  - 200: MFASetupResult
  - 400: MFA_ALREADY_ENABLED
  - 401: ErrUnauthorized
  - 404: ErrNotFound: Account vanished mid-session
*/
func (handler *Handler) mfaSetup(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.SetupMFA(request.Context(), userID, getClientIP(request), request.UserAgent())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
MFAVerify confirms enrollment and enables MFA.

POST /api/v1/auth/mfa/verify

Request:
  - Body: mfaVerifyRequest (Code: 6-digit TOTP or a backup code)

Response:
  - 200: {success, mfa_enabled, method, codes_remaining}
  - 400: VALIDATION_ERROR / MFA_NOT_CONFIGURED / INVALID_MFA_CODE
  - 401: ErrUnauthorized
*/
func (handler *Handler) mfaVerify(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input mfaVerifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCode, input.Code).
		Custom(FieldCode, input.Code != "" && !isWellFormedCode(input.Code), "Must be a 6-digit code or a backup code")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.VerifyAndEnableMFA(request.Context(), userID, input.Code, getClientIP(request), request.UserAgent())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"success":         true,
		"mfa_enabled":     true,
		"method":          result.Method,
		"codes_remaining": result.CodesRemaining,
	})
}

/*
MFADisable turns off multi-factor authentication.

POST /api/v1/auth/mfa/disable

Request:
  - Body: mfaDisableRequest (Password)

Response:
  - 200: {success, mfa_enabled:false}
  - 400: VALIDATION_ERROR / MFA_NOT_ENABLED
  - 401: ErrUnauthorized
  - 403: INVALID_PASSWORD: Re-authentication failed
*/
func (handler *Handler) mfaDisable(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input mfaDisableRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.DisableMFA(request.Context(), userID, input.Password, getClientIP(request), request.UserAgent()); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"success":     true,
		"mfa_enabled": false,
	})
}

// isWellFormedCode accepts a 6-digit TOTP code or a backup code shape.
func isWellFormedCode(code string) bool {
	return totpCodeRegex.MatchString(code) || backupCodeRegex.MatchString(code)
}

// getClientIP tries to extract the real IP address of a user over proxy environments.
func getClientIP(request *http.Request) string {

	ip := request.Header.Get(constants.HeaderXRealIP)
	if ip == "" {
		// X-Forwarded-For accumulates one hop per proxy; the client is the
		// first entry.
		forwarded := request.Header.Get(constants.HeaderXForwardedFor)
		ip, _, _ = strings.Cut(forwarded, ",")
		ip = strings.TrimSpace(ip)
	}

	if ip == "" {
		ip = request.RemoteAddr
	}
	return ip
}
