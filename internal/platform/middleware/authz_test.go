// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arboria/treeatlas/internal/platform/ctxutil"
	"github.com/arboria/treeatlas/internal/platform/middleware"
	"github.com/arboria/treeatlas/internal/platform/sec"
)

// staticVerifier returns fixed claims regardless of the request.
type staticVerifier struct {
	claims *sec.SessionClaims
}

func (v staticVerifier) VerifyRequest(_ *http.Request) *sec.SessionClaims {
	return v.claims
}

func TestAuthenticate_InjectsClaims(t *testing.T) {
	claims := &sec.SessionClaims{UserID: "user-1"}

	var seen *sec.SessionClaims
	handler := middleware.Authenticate(staticVerifier{claims: claims})(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			seen = ctxutil.GetSession(request.Context())
			writer.WriteHeader(http.StatusOK)
		}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID)
}

func TestAuthenticate_AnonymousPassesThrough(t *testing.T) {
	var seen *sec.SessionClaims
	called := false

	handler := middleware.Authenticate(staticVerifier{claims: nil})(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			called = true
			seen = ctxutil.GetSession(request.Context())
			writer.WriteHeader(http.StatusOK)
		}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	// Invalid or absent sessions never abort at this layer.
	assert.True(t, called)
	assert.Nil(t, seen)
}

func TestRequireSession(t *testing.T) {
	handler := middleware.RequireSession(
		http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))

	t.Run("blocks_anonymous", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "UNAUTHORIZED")
	})

	t.Run("admits_session", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := ctxutil.WithSession(request.Context(), &sec.SessionClaims{UserID: "user-1"})

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request.WithContext(ctx))

		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}
