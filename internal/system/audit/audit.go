// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

/*
Package audit implements the append-only security event log.

Every authentication-relevant action (logins, MFA lifecycle changes, backup
code consumption) is recorded as an immutable event before the triggering
operation returns its outcome to the caller.

# Architecture

  - Entry: The immutable event record (who, what, where, when, plus metadata).
  - Recorder: The domain contract implemented by the PostgreSQL store.
  - Ordering: Record is synchronous; a failed write aborts the caller so the
    log can never silently miss an event.
*/
package audit

import (
	"context"
	"time"

	"github.com/arboria/treeatlas/pkg/pagination"
)

// # Event Taxonomy

// EventType identifies the kind of security event being recorded.
//
// The set is closed: stores reject values outside this enumeration so the
// log stays queryable by exact type.
type EventType string

const (
	// EventLogin records a successful credential (and, when enabled, MFA) check.
	EventLogin EventType = "login"

	// EventLoginFailed records a rejected authentication attempt.
	EventLoginFailed EventType = "login_failed"

	// EventLogout records an explicit session termination.
	EventLogout EventType = "logout"

	// EventBackupCodeUsed records consumption of a one-time backup code.
	EventBackupCodeUsed EventType = "backup_code_used"

	// EventMFASetupInitiated records the start of TOTP enrollment.
	EventMFASetupInitiated EventType = "mfa_setup_initiated"

	// EventMFAEnabled records successful TOTP enrollment confirmation.
	EventMFAEnabled EventType = "mfa_enabled"

	// EventMFADisabled records deactivation of multi-factor authentication.
	EventMFADisabled EventType = "mfa_disabled"

	// EventMFADisableFailed records a rejected attempt to disable MFA.
	EventMFADisableFailed EventType = "mfa_disable_failed"

	// EventMFAVerificationFailed records a rejected TOTP or backup code.
	EventMFAVerificationFailed EventType = "mfa_verification_failed"
)

// knownEventTypes is the allow-list consulted by [EventType.Valid].
var knownEventTypes = map[EventType]struct{}{
	EventLogin:                 {},
	EventLoginFailed:           {},
	EventLogout:                {},
	EventBackupCodeUsed:        {},
	EventMFASetupInitiated:     {},
	EventMFAEnabled:            {},
	EventMFADisabled:           {},
	EventMFADisableFailed:      {},
	EventMFAVerificationFailed: {},
}

// Valid reports whether the event type belongs to the closed enumeration.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// # Domain Entities

// Entry is a single immutable record in the security event log.
//
// UserID is a pointer because failed logins for unknown identities are still
// recorded, just without an account to attach them to.
type Entry struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	EventType EventType      `json:"event_type"`
	IPAddress *string        `json:"ip_address,omitempty"`
	UserAgent *string        `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// # Contracts

// ListFilter narrows the result set of a log query.
type ListFilter struct {
	// UserID restricts results to a single account when non-empty.
	UserID string
	// EventType restricts results to a single event type when non-empty.
	EventType EventType
}

// Recorder is the domain contract for the append-only event log.
type Recorder interface {

	/*
		Record appends a single event to the log.

		Callers must invoke Record before returning the outcome of the
		operation being audited; a non-nil error means the event was NOT
		persisted and the caller should fail the operation.

		Parameters:
		  - context: context.Context
		  - entry: *Entry (ID and CreatedAt are assigned by the store if zero)

		Returns:
		  - error: Validation or persistence failures
	*/
	Record(context context.Context, entry *Entry) error

	/*
		List returns a reverse-chronological page of events.

		Parameters:
		  - context: context.Context
		  - filter: ListFilter
		  - params: pagination.Params

		Returns:
		  - []Entry: Page of events, newest first
		  - int: Total count matching the filter (for pagination metadata)
		  - error: Retrieval failures
	*/
	List(context context.Context, filter ListFilter, params pagination.Params) ([]Entry, int, error)
}
