// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtErrorLogCooldown is the minimum interval between log entries for the
// same verification failure class.
const jwtErrorLogCooldown = 60 * time.Second

// jwtErrorLogger emits rate-limited, non-sensitive log entries for JWT
// verification failures.
//
// A scanner hammering the API with garbage tokens would otherwise flood the
// logs; one entry per failure class per cooldown window keeps operational
// visibility without the spam. Neither the token nor its payload is ever
// logged.
type jwtErrorLogger struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	cooldown time.Duration
	logger   *slog.Logger
}

func newJWTErrorLogger(logger *slog.Logger, cooldown time.Duration) *jwtErrorLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &jwtErrorLogger{
		lastSeen: make(map[string]time.Time),
		cooldown: cooldown,
		logger:   logger,
	}
}

// Log records a verification failure, suppressed while its class is inside
// the cooldown window.
func (l *jwtErrorLogger) Log(err error) {
	class := classifyJWTError(err)

	if !l.shouldLog(class) {
		return
	}

	l.logger.Warn("jwt_verification_failed",
		slog.String("error_type", class),
	)
}

// shouldLog reports whether the class is outside its cooldown window and
// stamps it as seen.
func (l *jwtErrorLogger) shouldLog(class string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if last, ok := l.lastSeen[class]; ok && now.Sub(last) < l.cooldown {
		return false
	}

	l.lastSeen[class] = now
	return true
}

// classifyJWTError maps a verification error onto a small, safe vocabulary.
func classifyJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid_signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not_yet_valid"
	default:
		return "invalid"
	}
}
