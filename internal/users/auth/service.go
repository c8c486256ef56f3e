// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

/*
Package auth implements the credential verification core.

It handles password checks, the MFA challenge during login, backup-code
consumption, login-attempt lockout, and the audit trail around all of it.

Architecture:

  - Service: Orchestrates business logic (Authorize, MFA lifecycle).
  - Repository: Abstracted interfaces for Postgres (users, MFA secrets)
    and Redis (attempt counters).
  - Security: Argon2id password hashes, AES-256-GCM sealed TOTP secrets,
    enumeration-resistant error messages.

Audit writes are synchronous: no outcome is returned to a caller before its
audit entry is durably recorded.
*/
package auth

import (
	"context"
	"fmt"

	"github.com/arboria/treeatlas/internal/platform/apperr"
	"github.com/arboria/treeatlas/internal/platform/sec"
	"github.com/arboria/treeatlas/internal/system/audit"
	"github.com/arboria/treeatlas/pkg/pointer"
)

// # Contracts & Types

// SecretCipher seals and opens TOTP secrets for at-rest storage.
//
// [sec.SecretBox] is the production implementation; tests inject fakes.
type SecretCipher interface {
	// Encrypt seals a plaintext secret for storage.
	Encrypt(plaintext string) (string, error)
	// Decrypt opens a sealed secret. Corrupt or tampered input fails.
	Decrypt(ciphertext string) (string, error)
}

// TOTPProvider generates enrollment material and validates candidate codes.
type TOTPProvider interface {
	// GenerateKey creates a fresh TOTP secret for the account and renders
	// the provisioning QR as a PNG data URL.
	GenerateKey(accountName string) (secret string, qrCodeDataURL string, err error)
	// Verify checks a 6-digit candidate code against the secret. The result
	// never reveals why a code failed.
	Verify(secret, candidateCode string) bool
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to the authorize flow,
// MFA handling, or audit ordering must be reviewed by the security team.
type Service struct {
	userRepository      UserRepository
	mfaSecretRepository MFASecretRepository
	attemptLimiter      AttemptLimiter
	auditRecorder       audit.Recorder
	secretCipher        SecretCipher
	totpProvider        TOTPProvider
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	userRepo UserRepository,
	mfaRepo MFASecretRepository,
	limiter AttemptLimiter,
	recorder audit.Recorder,
	cipher SecretCipher,
	totpProv TOTPProvider,
) *Service {
	return &Service{
		userRepository:      userRepo,
		mfaSecretRepository: mfaRepo,
		attemptLimiter:      limiter,
		auditRecorder:       recorder,
		secretCipher:        cipher,
		totpProvider:        totpProv,
	}
}

// # Authentication Flow

// AuthorizeInput defines credentials for an authentication attempt.
type AuthorizeInput struct {
	Email     string
	Password  string
	TOTPCode  string // Optional: 6-digit TOTP or a backup code
	IPAddress string
	UserAgent string
}

/*
Authorize validates credentials and the MFA challenge, returning a minimal claim.

Description: Performs the full login decision — lockout check, user lookup,
constant-time password verification, TOTP/backup-code validation — and
records an audit entry for every terminal outcome before returning it.

The INVALID_CREDENTIALS message is byte-identical for missing input, unknown
email, and wrong password; the distinct cause lives only in audit metadata.

Parameters:
  - context: context.Context
  - input: AuthorizeInput

Returns:
  - *Identity: {id, email, name} — never hash or secret material
  - error: INVALID_CREDENTIALS, MFA_REQUIRED, INVALID_MFA_CODE, RATE_LIMITED,
    or internal failures
*/
func (service *Service) Authorize(context context.Context, input AuthorizeInput) (*Identity, error) {

	// Step 1: Reject empty credentials with the same generic error as any
	// other credential failure.
	if input.Email == "" || input.Password == "" {
		if err := service.auditFailedLogin(context, nil, input, ReasonMissingCredentials); err != nil {
			return nil, err
		}
		return nil, errInvalidCredentials()
	}

	// Step 2: Lockout gate. The 429 does not reveal whether the account exists.
	lockedOut, err := service.attemptLimiter.TooManyAttempts(context, input.Email, input.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("auth_service_lockout_check_failed: %w", err)
	}
	if lockedOut {
		if err := service.auditFailedLogin(context, nil, input, ReasonLockedOut); err != nil {
			return nil, err
		}
		return nil, apperr.RateLimited(int(LockoutDuration.Seconds()))
	}

	// Step 3: Look up the account. Unknown email gets the generic error;
	// anything else is an infrastructure failure, not a credential outcome,
	// so it must not touch the counter or the audit trail.
	user, err := service.userRepository.FindByEmail(context, input.Email)
	if err != nil {
		if apperr.Code(err) != "NOT_FOUND" {
			return nil, fmt.Errorf("auth_service_user_lookup_failed: %w", err)
		}
		if recordErr := service.attemptLimiter.RecordFailure(context, input.Email, input.IPAddress); recordErr != nil {
			return nil, fmt.Errorf("auth_service_record_failure_failed: %w", recordErr)
		}
		if auditErr := service.auditFailedLogin(context, nil, input, ReasonUserNotFound); auditErr != nil {
			return nil, auditErr
		}
		return nil, errInvalidCredentials()
	}

	// Step 4: Constant-time password verification.
	if !sec.VerifyPassword(input.Password, user.PasswordHash) {
		if recordErr := service.attemptLimiter.RecordFailure(context, input.Email, input.IPAddress); recordErr != nil {
			return nil, fmt.Errorf("auth_service_record_failure_failed: %w", recordErr)
		}
		if auditErr := service.auditFailedLogin(context, pointer.To(user.ID), input, ReasonInvalidPassword); auditErr != nil {
			return nil, auditErr
		}
		return nil, errInvalidCredentials()
	}

	// Step 5: MFA challenge.
	if user.MFAEnabled {

		// 5a: Password was correct but no code supplied. This is a prompt
		// for the client, not an attempt outcome, so nothing is audited.
		if input.TOTPCode == "" {
			return nil, errMFARequired()
		}

		// 5b: Validate the code against the TOTP secret, then the backup codes.
		if err := service.verifyLoginCode(context, user, input); err != nil {
			return nil, err
		}
	}

	// Step 6: Success. Clear the failure counter and audit before returning.
	if err := service.attemptLimiter.Reset(context, input.Email, input.IPAddress); err != nil {
		return nil, fmt.Errorf("auth_service_limiter_reset_failed: %w", err)
	}

	if err := service.record(context, &audit.Entry{
		UserID:    pointer.To(user.ID),
		EventType: audit.EventLogin,
		IPAddress: optional(input.IPAddress),
		UserAgent: optional(input.UserAgent),
	}); err != nil {
		return nil, err
	}

	return &Identity{ID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// verifyLoginCode checks the supplied code against the user's TOTP secret
// and, failing that, against the unused backup codes.
func (service *Service) verifyLoginCode(context context.Context, user *User, input AuthorizeInput) error {

	// The mfaenabled=true invariant guarantees a secret row; its absence is
	// corruption, not a client error.
	mfaSecret, err := service.mfaSecretRepository.FindByUserID(context, user.ID)
	if err != nil {
		return fmt.Errorf("auth_service_mfa_secret_missing: %w", err)
	}

	plainSecret, err := service.secretCipher.Decrypt(mfaSecret.TOTPSecret)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_secret_decrypt_failed: %w", err))
	}

	if service.totpProvider.Verify(plainSecret, input.TOTPCode) {
		return nil
	}

	// TOTP failed: fall back to the backup codes.
	matched, codeIndex := matchBackupCode(mfaSecret, input.TOTPCode)
	if matched {
		if err := service.mfaSecretRepository.MarkBackupCodeUsed(context, user.ID, codeIndex); err != nil {
			return fmt.Errorf("auth_service_mark_backup_code_failed: %w", err)
		}

		return service.record(context, &audit.Entry{
			UserID:    pointer.To(user.ID),
			EventType: audit.EventBackupCodeUsed,
			IPAddress: optional(input.IPAddress),
			UserAgent: optional(input.UserAgent),
			Metadata: map[string]any{
				MetaCodeIndex:      codeIndex,
				MetaCodesRemaining: mfaSecret.RemainingBackupCodes() - 1,
			},
		})
	}

	// Neither factor matched.
	if recordErr := service.attemptLimiter.RecordFailure(context, input.Email, input.IPAddress); recordErr != nil {
		return fmt.Errorf("auth_service_record_failure_failed: %w", recordErr)
	}
	if auditErr := service.auditFailedLogin(context, pointer.To(user.ID), input, ReasonInvalidMFA); auditErr != nil {
		return auditErr
	}

	return errInvalidMFACodeLogin()
}

// # Session Termination

/*
Logout records the end of a session in the audit log.

Description: Cookie clearing is a transport concern handled by the HTTP
layer; this method only writes the audit trail.

Parameters:
  - context: context.Context
  - userID: string
  - ipAddress: string
  - userAgent: string

Returns:
  - error: Audit persistence failures
*/
func (service *Service) Logout(context context.Context, userID, ipAddress, userAgent string) error {
	return service.record(context, &audit.Entry{
		UserID:    pointer.To(userID),
		EventType: audit.EventLogout,
		IPAddress: optional(ipAddress),
		UserAgent: optional(userAgent),
	})
}

// # Internal Helpers

// record appends an audit entry, converting persistence failures into
// internal errors so the caller aborts instead of returning an unaudited
// outcome.
func (service *Service) record(context context.Context, entry *audit.Entry) error {
	if err := service.auditRecorder.Record(context, entry); err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_audit_failed: %w", err))
	}
	return nil
}

// auditFailedLogin writes a login_failed entry with the internal reason.
func (service *Service) auditFailedLogin(context context.Context, userID *string, input AuthorizeInput, reason string) error {
	return service.record(context, &audit.Entry{
		UserID:    userID,
		EventType: audit.EventLoginFailed,
		IPAddress: optional(input.IPAddress),
		UserAgent: optional(input.UserAgent),
		Metadata:  map[string]any{MetaReason: reason},
	})
}

// optional converts a possibly-empty string into the nullable column form.
func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
