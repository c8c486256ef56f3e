// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth

import "context"

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		SetMFAEnabled flips the account's MFA flag.

		This is the only user mutation this subsystem performs outside the
		transactional disable flow.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - enabled: bool

		Returns:
		  - error: Persistence failures
	*/
	SetMFAEnabled(context context.Context, userID string, enabled bool) error
}

// # MFA Secret Data Access

// MFASecretRepository defines the data access contract for MFA configuration rows.
type MFASecretRepository interface {

	/*
		FindByUserID returns the MFA secret row for the given user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *MFASecret: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByUserID(context context.Context, userID string) (*MFASecret, error)

	/*
		Upsert creates or replaces the user's MFA secret row.

		A stale, unconfirmed row from an earlier setup attempt is overwritten
		wholesale (last write wins).

		Parameters:
		  - context: context.Context
		  - secret: *MFASecret

		Returns:
		  - error: Persistence failures
	*/
	Upsert(context context.Context, secret *MFASecret) error

	/*
		MarkBackupCodeUsed appends the code index to the consumed list.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - codeIndex: int

		Returns:
		  - error: Persistence failures
	*/
	MarkBackupCodeUsed(context context.Context, userID string, codeIndex int) error

	/*
		DisableMFA atomically clears the user's MFA flag and deletes the
		secret row in a single transaction.

		A crash can never leave the account with the flag cleared but the
		secret present, or vice versa.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Transaction failures
	*/
	DisableMFA(context context.Context, userID string) error
}

// # Volatile Data Access

// AttemptLimiter tracks failed login attempts per account+IP pair.
type AttemptLimiter interface {

	/*
		TooManyAttempts reports whether the pair is currently locked out.

		Parameters:
		  - context: context.Context
		  - email: string
		  - ipAddress: string

		Returns:
		  - bool: true when the failure budget is exhausted
		  - error: Connectivity failures
	*/
	TooManyAttempts(context context.Context, email, ipAddress string) (bool, error)

	/*
		RecordFailure increments the failure counter and refreshes its TTL.

		Parameters:
		  - context: context.Context
		  - email: string
		  - ipAddress: string

		Returns:
		  - error: Connectivity failures
	*/
	RecordFailure(context context.Context, email, ipAddress string) error

	/*
		Reset clears the failure counter after a successful login.

		Parameters:
		  - context: context.Context
		  - email: string
		  - ipAddress: string

		Returns:
		  - error: Connectivity failures
	*/
	Reset(context context.Context, email, ipAddress string) error
}
