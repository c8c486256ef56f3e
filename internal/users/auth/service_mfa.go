// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/arboria/treeatlas/internal/platform/apperr"
	"github.com/arboria/treeatlas/internal/platform/sec"
	"github.com/arboria/treeatlas/internal/system/audit"
	"github.com/arboria/treeatlas/pkg/pointer"
)

// # TOTP Adapter

// StandardTOTPProvider is the production [TOTPProvider] built on the sec package.
type StandardTOTPProvider struct {
	issuer string
}

// NewTOTPProvider constructs a TOTP provider labeling keys with the given issuer.
func NewTOTPProvider(issuer string) *StandardTOTPProvider {
	return &StandardTOTPProvider{issuer: issuer}
}

// GenerateKey creates a fresh TOTP secret and renders the provisioning QR.
func (provider *StandardTOTPProvider) GenerateKey(accountName string) (string, string, error) {
	key, err := sec.GenerateTOTPKey(provider.issuer, accountName)
	if err != nil {
		return "", "", fmt.Errorf("totp_provider_generate_failed: %w", err)
	}

	qrCodeDataURL, err := sec.QRCodeDataURL(key)
	if err != nil {
		return "", "", fmt.Errorf("totp_provider_qr_failed: %w", err)
	}

	return key.Secret(), qrCodeDataURL, nil
}

// Verify checks a candidate code against the secret within the standard window.
func (provider *StandardTOTPProvider) Verify(secret, candidateCode string) bool {
	return sec.VerifyTOTP(secret, candidateCode)
}

// # MFA Lifecycle

// MFASetupResult carries the one-time enrollment material returned to the user.
//
// The plaintext backup codes exist only in this response; afterwards only
// their Argon2id hashes remain.
type MFASetupResult struct {
	Secret        string   `json:"secret"`
	QRCodeDataURL string   `json:"qr_code_data_url"`
	BackupCodes   []string `json:"backup_codes"`
}

// MFAVerifyResult reports the outcome of a successful verify-and-enable call.
type MFAVerifyResult struct {
	Method         string `json:"method"`
	CodesRemaining int    `json:"codes_remaining"`
}

/*
SetupMFA starts TOTP enrollment for an authenticated user.

Description: Generates a fresh secret and 10 backup codes, seals the secret,
hashes the codes, and upserts the configuration row — replacing any stale
unconfirmed attempt. MFA stays off until verify-and-enable confirms.

Parameters:
  - context: context.Context
  - userID: string
  - ipAddress: string
  - userAgent: string

Returns:
  - *MFASetupResult: Secret, QR data URL, and plaintext backup codes (shown once)
  - error: apperr.NotFound, MFA_ALREADY_ENABLED, or internal failures
*/
func (service *Service) SetupMFA(context context.Context, userID, ipAddress, userAgent string) (*MFASetupResult, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if user.MFAEnabled {
		return nil, errMFAAlreadyEnabled()
	}

	// Fresh secret + provisioning QR labeled with the account email.
	plainSecret, qrCodeDataURL, err := service.totpProvider.GenerateKey(user.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	sealedSecret, err := service.secretCipher.Encrypt(plainSecret)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_secret_encrypt_failed: %w", err))
	}

	// Fresh backup codes on every setup call; only hashes are stored.
	backupCodes, err := sec.GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_backup_codes_failed: %w", err))
	}

	hashedCodes := make([]string, len(backupCodes))
	for i, code := range backupCodes {
		hashed, err := sec.HashPassword(normalizeBackupCode(code))
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("auth_service_backup_code_hash_failed: %w", err))
		}
		hashedCodes[i] = hashed
	}

	if err := service.mfaSecretRepository.Upsert(context, &MFASecret{
		UserID:          user.ID,
		TOTPSecret:      sealedSecret,
		BackupCodes:     hashedCodes,
		BackupCodesUsed: []int32{},
	}); err != nil {
		return nil, fmt.Errorf("auth_service_mfa_upsert_failed: %w", err)
	}

	if err := service.record(context, &audit.Entry{
		UserID:    pointer.To(user.ID),
		EventType: audit.EventMFASetupInitiated,
		IPAddress: optional(ipAddress),
		UserAgent: optional(userAgent),
	}); err != nil {
		return nil, err
	}

	return &MFASetupResult{
		Secret:        plainSecret,
		QRCodeDataURL: qrCodeDataURL,
		BackupCodes:   backupCodes,
	}, nil
}

/*
VerifyAndEnableMFA confirms enrollment with a TOTP or backup code.

Description: Decrypts the pending secret and validates the code. A valid
TOTP code — or, as a recovery path, a valid backup code — flips the
account's MFA flag on. A rejected code changes no state.

Parameters:
  - context: context.Context
  - userID: string
  - code: string
  - ipAddress: string
  - userAgent: string

Returns:
  - *MFAVerifyResult: Method used and remaining backup codes
  - error: MFA_NOT_CONFIGURED, INVALID_MFA_CODE, or internal failures
*/
func (service *Service) VerifyAndEnableMFA(context context.Context, userID, code, ipAddress, userAgent string) (*MFAVerifyResult, error) {
	mfaSecret, err := service.mfaSecretRepository.FindByUserID(context, userID)
	if err != nil {
		if apperr.Code(err) == "NOT_FOUND" {
			return nil, errMFANotConfigured()
		}
		return nil, err
	}

	plainSecret, err := service.secretCipher.Decrypt(mfaSecret.TOTPSecret)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_secret_decrypt_failed: %w", err))
	}

	method := MethodTOTP
	codesRemaining := mfaSecret.RemainingBackupCodes()

	if !service.totpProvider.Verify(plainSecret, code) {

		// Recovery path: a well-formed backup code also confirms enrollment.
		matched, codeIndex := matchBackupCode(mfaSecret, code)
		if !matched {
			if auditErr := service.record(context, &audit.Entry{
				UserID:    pointer.To(userID),
				EventType: audit.EventMFAVerificationFailed,
				IPAddress: optional(ipAddress),
				UserAgent: optional(userAgent),
				Metadata:  map[string]any{MetaReason: ReasonInvalidMFA},
			}); auditErr != nil {
				return nil, auditErr
			}
			return nil, errInvalidMFACodeVerify()
		}

		if err := service.mfaSecretRepository.MarkBackupCodeUsed(context, userID, codeIndex); err != nil {
			return nil, fmt.Errorf("auth_service_mark_backup_code_failed: %w", err)
		}

		method = MethodBackupCode
		codesRemaining--
	}

	if err := service.userRepository.SetMFAEnabled(context, userID, true); err != nil {
		return nil, fmt.Errorf("auth_service_enable_mfa_failed: %w", err)
	}

	if err := service.record(context, &audit.Entry{
		UserID:    pointer.To(userID),
		EventType: audit.EventMFAEnabled,
		IPAddress: optional(ipAddress),
		UserAgent: optional(userAgent),
		Metadata:  map[string]any{MetaMethod: method},
	}); err != nil {
		return nil, err
	}

	return &MFAVerifyResult{Method: method, CodesRemaining: codesRemaining}, nil
}

/*
DisableMFA turns off multi-factor authentication after password re-auth.

Description: Verifies the password, then clears the MFA flag and deletes
the secret row in a single transaction so the two can never disagree.

Parameters:
  - context: context.Context
  - userID: string
  - password: string
  - ipAddress: string
  - userAgent: string

Returns:
  - error: MFA_NOT_ENABLED, INVALID_PASSWORD (403), or internal failures
*/
func (service *Service) DisableMFA(context context.Context, userID, password, ipAddress, userAgent string) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !user.MFAEnabled {
		return errMFANotEnabled()
	}

	// Re-authentication: the session alone is not enough to drop a factor.
	if !sec.VerifyPassword(password, user.PasswordHash) {
		if auditErr := service.record(context, &audit.Entry{
			UserID:    pointer.To(user.ID),
			EventType: audit.EventMFADisableFailed,
			IPAddress: optional(ipAddress),
			UserAgent: optional(userAgent),
			Metadata:  map[string]any{MetaReason: ReasonInvalidPassword},
		}); auditErr != nil {
			return auditErr
		}
		return errInvalidPassword()
	}

	if err := service.mfaSecretRepository.DisableMFA(context, user.ID); err != nil {
		return fmt.Errorf("auth_service_disable_mfa_failed: %w", err)
	}

	return service.record(context, &audit.Entry{
		UserID:    pointer.To(user.ID),
		EventType: audit.EventMFADisabled,
		IPAddress: optional(ipAddress),
		UserAgent: optional(userAgent),
	})
}

// # Backup Code Matching

// normalizeBackupCode uppercases a candidate and strips separators so user
// input like "ab3d-ef5g-hj7k" matches the stored hash of "AB3DEF5GHJ7K".
func normalizeBackupCode(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	normalized = strings.ReplaceAll(normalized, "-", "")
	return strings.ReplaceAll(normalized, " ", "")
}

// matchBackupCode compares the candidate against every unused backup code
// hash. Argon2id verification is constant-time per code, and every unused
// code is checked even after a match would be possible cheaply.
func matchBackupCode(secret *MFASecret, candidate string) (bool, int) {
	normalized := normalizeBackupCode(candidate)

	matchedIndex := -1
	for index, hash := range secret.BackupCodes {
		if secret.ConsumedCode(index) {
			continue
		}
		if sec.VerifyPassword(normalized, hash) && matchedIndex == -1 {
			matchedIndex = index
		}
	}

	return matchedIndex != -1, matchedIndex
}
