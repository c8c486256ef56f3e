// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

// Package middleware provides the HTTP middleware chain for the TreeAtlas API server.
//
// # Architecture
//
// Middleware intercepts incoming HTTP requests to apply global policies
// before they reach the domain handlers. This includes cross-cutting concerns
// like Logging, AuthZ/AuthN, Rate Limiting, and CORS.
package middleware

import (
	"net/http"

	"github.com/arboria/treeatlas/internal/platform/apperr"
	"github.com/arboria/treeatlas/internal/platform/ctxutil"
	"github.com/arboria/treeatlas/internal/platform/respond"
	"github.com/arboria/treeatlas/internal/platform/sec"
)

// SessionVerifier defines the interface needed to verify session cookies in middleware.
//
// # Why an interface?
//
// Defining SessionVerifier here decouples the middleware from the session
// service implementation, allowing us to easily inject fakes during unit testing.
type SessionVerifier interface {
	VerifyRequest(request *http.Request) *sec.SessionClaims
}

// Authenticate verifies the session cookie and populates the request context.
//
// # Flow
//  1. Ask the verifier for the request's session claims (cookie extraction,
//     signature check, and claim validation all happen inside it).
//  2. A nil result means anonymous; the request proceeds unauthenticated.
//  3. A non-nil claim is injected into the context for downstream handlers.
//
// # Parameters
//   - verifier: The SessionVerifier instance.
//
// # Returns
//   - An [http.Handler] middleware.
func Authenticate(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := verifier.VerifyRequest(request)

			// Anonymous access: invalid or absent sessions never abort here;
			// route-level guards decide whether anonymity is acceptable.
			if claims == nil {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithSession(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireSession blocks requests that do not carry a valid session.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if [*sec.SessionClaims] exists in context.
//  2. If missing, abort with HTTP 401 Unauthorized.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := ctxutil.GetSession(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
