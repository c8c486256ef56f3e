// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth

import "time"

// # Authentication Constraints

const (
	// MaxLoginAttempts is the number of failed logins tolerated per
	// account+IP pair before the lockout kicks in.
	MaxLoginAttempts = 5

	// LockoutDuration is how long an account+IP pair stays locked out
	// after exceeding MaxLoginAttempts.
	LockoutDuration = 15 * time.Minute

	// BackupCodeCount is the number of recovery codes issued at MFA setup.
	BackupCodeCount = 10

	// TOTPCodeLength is the digit count of a well-formed TOTP code.
	TOTPCodeLength = 6
)

// # Audit Metadata Keys

// Keys used in audit-log metadata. Reasons are internal-only and never
// surface in client responses.
const (
	MetaReason         = "reason"
	MetaMethod         = "method"
	MetaCodeIndex      = "code_index"
	MetaCodesRemaining = "codes_remaining"

	ReasonMissingCredentials = "missing_credentials"

	ReasonUserNotFound    = "user_not_found"
	ReasonInvalidPassword = "invalid_password"
	ReasonInvalidMFA      = "invalid_mfa"
	ReasonLockedOut       = "locked_out"

	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)
