// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/arboria/treeatlas/internal/platform/constants"
)

// # Login Attempt Limiter

// RedisAttemptLimiter implements AttemptLimiter using Redis counters with TTL.
//
// # Keying
//
// Counters are keyed per account+IP pair so an attacker hammering one
// account from one address cannot lock out the legitimate user elsewhere,
// and a distributed attacker still trips the per-address budget.
type RedisAttemptLimiter struct {
	client *redis.Client
}

// NewAttemptLimiter creates a new Redis-backed AttemptLimiter.
func NewAttemptLimiter(client *redis.Client) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{client: client}
}

// attemptKey builds the Redis key for an account+IP pair.
func attemptKey(email, ipAddress string) string {
	return constants.RedisPrefixLoginAttempts + strings.ToLower(email) + ":" + ipAddress
}

/*
TooManyAttempts reports whether the pair has exhausted its failure budget.

Description: A missing key means zero failures; connectivity errors are
surfaced so the caller can decide to fail closed.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - bool: true when the counter has reached MaxLoginAttempts
  - error: Connectivity failures
*/
func (limiter *RedisAttemptLimiter) TooManyAttempts(context context.Context, email, ipAddress string) (bool, error) {

	// Get the current counter value
	count, err := limiter.client.Get(context, attemptKey(email, ipAddress)).Int()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis_attempt_limiter_get_failed: %w", err)
	}

	return count >= MaxLoginAttempts, nil
}

/*
RecordFailure increments the failure counter and refreshes its TTL.

Description: The TTL restarts on every failure, so the lockout window slides
with continued abuse.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - error: Connectivity failures
*/
func (limiter *RedisAttemptLimiter) RecordFailure(context context.Context, email, ipAddress string) error {
	key := attemptKey(email, ipAddress)

	// Increment and refresh expiry in a single round trip
	pipe := limiter.client.TxPipeline()
	pipe.Incr(context, key)
	pipe.Expire(context, key, LockoutDuration)

	if _, err := pipe.Exec(context); err != nil {
		return fmt.Errorf("redis_attempt_limiter_incr_failed: %w", err)
	}

	return nil
}

/*
Reset clears the failure counter after a successful login.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - error: Connectivity failures
*/
func (limiter *RedisAttemptLimiter) Reset(context context.Context, email, ipAddress string) error {
	if err := limiter.client.Del(context, attemptKey(email, ipAddress)).Err(); err != nil {
		return fmt.Errorf("redis_attempt_limiter_reset_failed: %w", err)
	}

	return nil
}
