// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arboria/treeatlas/internal/platform/constants"
	"github.com/arboria/treeatlas/internal/platform/sec"
)

const testSessionSecret = "test-session-secret-not-for-production"

func newTestSessionService(secret string, secure bool) *sec.SessionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sec.NewSessionService(secret, constants.AuthIssuer, time.Hour, secure, logger)
}

/*
TestSessionService_IssueVerifyRoundTrip issues a token and verifies it
through the cookie path, checking the claims survive intact.
*/
func TestSessionService_IssueVerifyRoundTrip(t *testing.T) {
	service := newTestSessionService(testSessionSecret, false)

	token, err := service.Issue("user-123", "admin@example.com", "Admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	request := httptest.NewRequest("GET", "/api/v1/auth/session", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: token})

	claims := service.VerifyRequest(request)
	require.NotNil(t, claims)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "Admin", claims.Name)
	assert.Equal(t, constants.AuthIssuer, claims.Issuer)
}

/*
TestSessionService_FailClosed covers the empty-secret path: issuing fails
and verification returns nil even for a token that another, properly
configured service signed.
*/
func TestSessionService_FailClosed(t *testing.T) {
	configured := newTestSessionService(testSessionSecret, false)
	unconfigured := newTestSessionService("", false)

	_, err := unconfigured.Issue("user-123", "", "")
	assert.Error(t, err)

	token, err := configured.Issue("user-123", "", "")
	require.NoError(t, err)

	request := httptest.NewRequest("GET", "/", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: token})

	assert.Nil(t, unconfigured.VerifyRequest(request))
}

/*
TestSessionService_RejectsMissingUserID signs a token with the right secret
but no "id" claim; verification must treat it as anonymous.
*/
func TestSessionService_RejectsMissingUserID(t *testing.T) {
	service := newTestSessionService(testSessionSecret, false)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": constants.AuthIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSessionSecret))
	require.NoError(t, err)

	request := httptest.NewRequest("GET", "/", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: signed})

	assert.Nil(t, service.VerifyRequest(request))
}

/*
TestSessionService_RejectsWrongAlgorithm pins HS256: a token signed with
HS512 under the same secret must not verify.
*/
func TestSessionService_RejectsWrongAlgorithm(t *testing.T) {
	service := newTestSessionService(testSessionSecret, false)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"id":  "user-123",
		"iss": constants.AuthIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSessionSecret))
	require.NoError(t, err)

	request := httptest.NewRequest("GET", "/", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: signed})

	assert.Nil(t, service.VerifyRequest(request))
}

/*
TestSessionService_RejectsExpiredToken verifies an expired session yields
nil rather than an error surface.
*/
func TestSessionService_RejectsExpiredToken(t *testing.T) {
	service := newTestSessionService(testSessionSecret, false)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "user-123",
		"iss": constants.AuthIssuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSessionSecret))
	require.NoError(t, err)

	request := httptest.NewRequest("GET", "/", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: signed})

	assert.Nil(t, service.VerifyRequest(request))
}

/*
TestSessionService_CookiePrecedence: the secure-prefixed cookie is
consulted first, so a garbage token there masks a valid fallback cookie,
and a valid secure cookie wins over garbage in the fallback.
*/
func TestSessionService_CookiePrecedence(t *testing.T) {
	service := newTestSessionService(testSessionSecret, true)

	token, err := service.Issue("user-123", "", "")
	require.NoError(t, err)

	t.Run("valid_secure_wins", func(t *testing.T) {
		request := httptest.NewRequest("GET", "/", nil)
		request.AddCookie(&http.Cookie{Name: constants.SecureSessionCookieName, Value: token})
		request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "garbage"})

		claims := service.VerifyRequest(request)
		require.NotNil(t, claims)
		assert.Equal(t, "user-123", claims.UserID)
	})

	t.Run("garbage_secure_masks_valid_fallback", func(t *testing.T) {
		request := httptest.NewRequest("GET", "/", nil)
		request.AddCookie(&http.Cookie{Name: constants.SecureSessionCookieName, Value: "garbage"})
		request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: token})

		assert.Nil(t, service.VerifyRequest(request))
	})
}

/*
TestSessionService_Cookies checks WriteCookie and ClearCookies shape the
Set-Cookie headers for both deployment modes.
*/
func TestSessionService_Cookies(t *testing.T) {
	t.Run("write_insecure", func(t *testing.T) {
		service := newTestSessionService(testSessionSecret, false)
		recorder := httptest.NewRecorder()
		service.WriteCookie(recorder, "token-value")

		cookies := recorder.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
		assert.Equal(t, "token-value", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
		assert.False(t, cookies[0].Secure)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	})

	t.Run("write_secure", func(t *testing.T) {
		service := newTestSessionService(testSessionSecret, true)
		recorder := httptest.NewRecorder()
		service.WriteCookie(recorder, "token-value")

		cookies := recorder.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, constants.SecureSessionCookieName, cookies[0].Name)
		assert.True(t, cookies[0].Secure)
	})

	t.Run("clear_both", func(t *testing.T) {
		service := newTestSessionService(testSessionSecret, true)
		recorder := httptest.NewRecorder()
		service.ClearCookies(recorder)

		cookies := recorder.Result().Cookies()
		require.Len(t, cookies, 2)
		for _, cookie := range cookies {
			assert.Equal(t, -1, cookie.MaxAge)
			assert.Empty(t, cookie.Value)
		}
	})
}
