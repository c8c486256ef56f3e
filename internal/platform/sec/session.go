// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arboria/treeatlas/internal/platform/constants"
)

// SessionClaims is the payload embedded inside a session JWT.
//
// # Claim Completeness
//
// UserID ("id") is the only required claim: a correctly signed token whose
// payload lacks it is treated as invalid. Email and Name are carried for
// display convenience only and must never be trusted for authorization.
type SessionClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// SessionService issues and verifies the stateless session tokens that
// represent a logged-in user.
//
// # Fail-Closed
//
// When the signing secret is not configured, [SessionService.VerifyRequest]
// returns nil without ever touching the token, and [SessionService.Issue]
// returns an error. Missing configuration can only make the system MORE
// restrictive, never less.
type SessionService struct {
	secret        []byte
	issuer        string
	timeToLive    time.Duration
	secureCookies bool
	errorLog      *jwtErrorLogger
}

// NewSessionService constructs a [SessionService].
//
// # Parameters
//   - secret: The HS256 signing key. May be empty (fail-closed mode).
//   - issuer: The 'iss' claim stamped on every issued token.
//   - timeToLive: Session lifetime (7 days by default, via config).
//   - secureCookies: Selects the __Secure- prefixed cookie for TLS deployments.
//   - logger: Destination for the rate-limited verification failure log.
func NewSessionService(secret, issuer string, timeToLive time.Duration, secureCookies bool, logger *slog.Logger) *SessionService {
	return &SessionService{
		secret:        []byte(secret),
		issuer:        issuer,
		timeToLive:    timeToLive,
		secureCookies: secureCookies,
		errorLog:      newJWTErrorLogger(logger, jwtErrorLogCooldown),
	}
}

// # Issuing

// Issue signs a session token carrying the minimal identity claim.
func (service *SessionService) Issue(userID, email, name string) (string, error) {
	if len(service.secret) == 0 {
		return "", fmt.Errorf("sec: session secret is not configured")
	}

	currentTime := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.timeToLive)),
		},
		UserID: userID,
		Email:  email,
		Name:   name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// # Verification

/*
VerifyRequest resolves the session claim for an incoming request.

State machine (per request):

	no token                      -> nil
	token + secret missing        -> nil (no verify attempt)
	token + verification failure  -> nil (rate-limited log entry)
	token + valid, no "id" claim  -> nil
	token + valid, "id" present   -> claims

It never returns an error: an unverifiable session is indistinguishable from
an absent one, and middleware treats both as anonymous.
*/
func (service *SessionService) VerifyRequest(request *http.Request) *SessionClaims {
	// Fail closed before looking at the token at all.
	if len(service.secret) == 0 {
		return nil
	}

	tokenString := TokenFromRequest(request)
	if tokenString == "" {
		return nil
	}

	claims, err := service.VerifyToken(tokenString)
	if err != nil {
		service.errorLog.Log(err)
		return nil
	}

	if claims.UserID == "" {
		return nil
	}

	return claims
}

// VerifyToken checks the signature and validity of a session JWT string.
//
// The algorithm is pinned to HS256: a token signed with any other method
// (including "none" or an RSA variant) is rejected outright, closing the
// classic algorithm-confusion hole.
func (service *SessionService) VerifyToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
			}
			return service.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		return nil, fmt.Errorf("sec: invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid session token claims")
	}

	return claims, nil
}

// TokenFromRequest extracts the raw session token from a request's cookies.
//
// The secure-prefixed cookie always takes precedence when both are present,
// so a stale development cookie can never shadow the TLS session.
func TokenFromRequest(request *http.Request) string {
	if cookie, err := request.Cookie(constants.SecureSessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// # Cookie Management

// CookieName returns the session cookie name for this deployment context.
func (service *SessionService) CookieName() string {
	if service.secureCookies {
		return constants.SecureSessionCookieName
	}
	return constants.SessionCookieName
}

// WriteCookie attaches the session token to the response.
func (service *SessionService) WriteCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     service.CookieName(),
		Value:    token,
		Path:     constants.SessionCookiePath,
		MaxAge:   int(service.timeToLive.Seconds()),
		Secure:   service.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookies expires both session cookie variants.
//
// Clearing both covers the deployment-context switch (a browser holding a
// dev cookie after the site moved behind TLS, or vice versa).
func (service *SessionService) ClearCookies(writer http.ResponseWriter) {
	for _, name := range []string{constants.SecureSessionCookieName, constants.SessionCookieName} {
		http.SetCookie(writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     constants.SessionCookiePath,
			MaxAge:   -1,
			Secure:   name == constants.SecureSessionCookieName,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
