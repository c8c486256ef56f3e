// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arboria/treeatlas/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
FindByID retrieves a user record by primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	const query = `
		SELECT id, email, name, passwordhash, mfaenabled, createdat, updatedat
		FROM users.account
		WHERE id = $1`

	user := &User{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.MFAEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_id")
	}

	return user, nil
}

/*
FindByEmail retrieves a user record by their unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, name, passwordhash, mfaenabled, createdat, updatedat
		FROM users.account
		WHERE email = $1`

	user := &User{}
	err := repository.pool.QueryRow(context, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.MFAEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_email")
	}

	return user, nil
}

/*
SetMFAEnabled flips the account's MFA flag.

Parameters:
  - context: context.Context
  - userID: string
  - enabled: bool

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) SetMFAEnabled(context context.Context, userID string, enabled bool) error {
	const query = `
		UPDATE users.account
		SET mfaenabled = $2, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, userID, enabled, time.Now())
	if err != nil {
		return dberr.Wrap(err, "set_mfa_enabled")
	}

	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

// # MFA Secret Repository

// PostgresMFASecretRepository implements the MFASecretRepository interface using pgx.
type PostgresMFASecretRepository struct {
	pool *pgxpool.Pool
}

// NewMFASecretRepository creates a new PostgreSQL implementation of the MFASecretRepository.
func NewMFASecretRepository(pool *pgxpool.Pool) *PostgresMFASecretRepository {
	return &PostgresMFASecretRepository{pool: pool}
}

/*
FindByUserID retrieves the MFA secret row for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *MFASecret: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresMFASecretRepository) FindByUserID(context context.Context, userID string) (*MFASecret, error) {
	const query = `
		SELECT userid, totpsecret, backupcodes, backupcodesused, createdat, updatedat
		FROM users.mfasecret
		WHERE userid = $1`

	secret := &MFASecret{}
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&secret.UserID,
		&secret.TOTPSecret,
		&secret.BackupCodes,
		&secret.BackupCodesUsed,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)

	if err != nil {
		return nil, dberr.Wrap(err, "find_mfa_secret")
	}

	return secret, nil
}

/*
Upsert creates or replaces the user's MFA secret row.

Description: A repeated setup call replaces the sealed secret, the backup
code hashes, and resets the consumed-code list.

Parameters:
  - context: context.Context
  - secret: *MFASecret

Returns:
  - error: Database errors
*/
func (repository *PostgresMFASecretRepository) Upsert(context context.Context, secret *MFASecret) error {
	const query = `
		INSERT INTO users.mfasecret (
			userid, totpsecret, backupcodes, backupcodesused, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (userid) DO UPDATE SET
			totpsecret = EXCLUDED.totpsecret,
			backupcodes = EXCLUDED.backupcodes,
			backupcodesused = EXCLUDED.backupcodesused,
			updatedat = EXCLUDED.updatedat`

	now := time.Now()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	secret.UpdatedAt = now

	if secret.BackupCodesUsed == nil {
		secret.BackupCodesUsed = []int32{}
	}

	_, err := repository.pool.Exec(context, query,
		secret.UserID,
		secret.TOTPSecret,
		secret.BackupCodes,
		secret.BackupCodesUsed,
		secret.CreatedAt,
		secret.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "upsert_mfa_secret")
	}

	return nil
}

/*
MarkBackupCodeUsed appends the code index to the consumed list.

Parameters:
  - context: context.Context
  - userID: string
  - codeIndex: int

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresMFASecretRepository) MarkBackupCodeUsed(context context.Context, userID string, codeIndex int) error {
	const query = `
		UPDATE users.mfasecret
		SET backupcodesused = array_append(backupcodesused, $2), updatedat = $3
		WHERE userid = $1`

	tag, err := repository.pool.Exec(context, query, userID, int32(codeIndex), time.Now())
	if err != nil {
		return dberr.Wrap(err, "mark_backup_code_used")
	}

	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

/*
DisableMFA atomically clears the MFA flag and deletes the secret row.

Description: Both writes happen inside one transaction; a failure of either
rolls back the other, so the flag and the row can never disagree.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Transaction failures
*/
func (repository *PostgresMFASecretRepository) DisableMFA(context context.Context, userID string) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return dberr.Wrap(err, "disable_mfa_begin")
	}
	defer func() { _ = transaction.Rollback(context) }()

	const flagQuery = `
		UPDATE users.account
		SET mfaenabled = FALSE, updatedat = $2
		WHERE id = $1`

	if _, err := transaction.Exec(context, flagQuery, userID, time.Now()); err != nil {
		return dberr.Wrap(err, "disable_mfa_flag")
	}

	const deleteQuery = `DELETE FROM users.mfasecret WHERE userid = $1`

	if _, err := transaction.Exec(context, deleteQuery, userID); err != nil {
		return dberr.Wrap(err, "disable_mfa_delete")
	}

	if err := transaction.Commit(context); err != nil {
		return dberr.Wrap(err, "disable_mfa_commit")
	}

	return nil
}
