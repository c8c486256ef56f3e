// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

/*
Package auth implements the credential and MFA core of the TreeAtlas identity system.

It defines the domain entities (User, MFASecret) and the orchestration logic for
password verification, the TOTP/backup-code lifecycle, and login auditing.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no transport
dependencies and encapsulate all business rules related to authentication.
*/
package auth

import "time"

// # Domain Entities

// User represents a registered member of the TreeAtlas platform.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	MFAEnabled   bool      `json:"mfa_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MFASecret is the at-most-one-per-user MFA configuration record.
//
// # Invariant
//
// A user with MFAEnabled = true has exactly one MFASecret; a user with
// MFAEnabled = false may have one in the "setup initiated, not yet
// confirmed" state. The disable flow removes the row and clears the flag
// in a single transaction so no other combination can exist.
type MFASecret struct {
	UserID string `json:"user_id"`

	// TOTPSecret is the AES-256-GCM sealed base32 secret, never plaintext.
	TOTPSecret string `json:"-"`

	// BackupCodes holds one-way Argon2id hashes of the recovery codes.
	BackupCodes []string `json:"-"`

	// BackupCodesUsed lists the indexes into BackupCodes that have been
	// consumed, preventing reuse.
	BackupCodesUsed []int32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConsumedCode reports whether the backup code at the given index was already used.
func (secret *MFASecret) ConsumedCode(index int) bool {
	for _, used := range secret.BackupCodesUsed {
		if int(used) == index {
			return true
		}
	}
	return false
}

// RemainingBackupCodes returns the number of codes that are still usable.
func (secret *MFASecret) RemainingBackupCodes() int {
	return len(secret.BackupCodes) - len(secret.BackupCodesUsed)
}

// Identity is the minimal claim returned by a successful authorization.
//
// It deliberately carries no password hash and no MFA secret material;
// this shape is what gets embedded into the session token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldTOTPCode = "totp_code"
	FieldCode     = "code"
	FieldMessage  = "message"
)
