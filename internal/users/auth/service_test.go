// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arboria/treeatlas/internal/platform/apperr"
	"github.com/arboria/treeatlas/internal/platform/sec"
	"github.com/arboria/treeatlas/internal/system/audit"
	"github.com/arboria/treeatlas/internal/users/auth"
	"github.com/arboria/treeatlas/pkg/pagination"
)

// # In-Memory Fakes

// fakeStore implements UserRepository and MFASecretRepository over maps,
// with DisableMFA mimicking the transactional flag+row atomicity.
type fakeStore struct {
	users   map[string]*auth.User // keyed by ID
	secrets map[string]*auth.MFASecret

	// findByEmailErr, when set, makes FindByEmail fail with it.
	findByEmailErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*auth.User),
		secrets: make(map[string]*auth.MFASecret),
	}
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	if user, ok := s.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, apperr.NotFound("User")
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if s.findByEmailErr != nil {
		return nil, s.findByEmailErr
	}
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (s *fakeStore) SetMFAEnabled(_ context.Context, userID string, enabled bool) error {
	user, ok := s.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.MFAEnabled = enabled
	return nil
}

func (s *fakeStore) FindByUserID(_ context.Context, userID string) (*auth.MFASecret, error) {
	if secret, ok := s.secrets[userID]; ok {
		copied := *secret
		return &copied, nil
	}
	return nil, apperr.NotFound("MFA configuration")
}

func (s *fakeStore) Upsert(_ context.Context, secret *auth.MFASecret) error {
	copied := *secret
	s.secrets[secret.UserID] = &copied
	return nil
}

func (s *fakeStore) MarkBackupCodeUsed(_ context.Context, userID string, codeIndex int) error {
	secret, ok := s.secrets[userID]
	if !ok {
		return apperr.NotFound("MFA configuration")
	}
	secret.BackupCodesUsed = append(secret.BackupCodesUsed, int32(codeIndex))
	return nil
}

func (s *fakeStore) DisableMFA(_ context.Context, userID string) error {
	user, ok := s.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.MFAEnabled = false
	delete(s.secrets, userID)
	return nil
}

// fakeLimiter counts failures in memory.
type fakeLimiter struct {
	failures map[string]int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{failures: make(map[string]int)}
}

func (l *fakeLimiter) TooManyAttempts(_ context.Context, email, ip string) (bool, error) {
	return l.failures[email+":"+ip] >= auth.MaxLoginAttempts, nil
}

func (l *fakeLimiter) RecordFailure(_ context.Context, email, ip string) error {
	l.failures[email+":"+ip]++
	return nil
}

func (l *fakeLimiter) Reset(_ context.Context, email, ip string) error {
	delete(l.failures, email+":"+ip)
	return nil
}

// fakeRecorder collects audit entries in order.
type fakeRecorder struct {
	entries []audit.Entry
}

func (r *fakeRecorder) Record(_ context.Context, entry *audit.Entry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeRecorder) List(_ context.Context, _ audit.ListFilter, _ pagination.Params) ([]audit.Entry, int, error) {
	return r.entries, len(r.entries), nil
}

func (r *fakeRecorder) ofType(eventType audit.EventType) []audit.Entry {
	var matched []audit.Entry
	for _, entry := range r.entries {
		if entry.EventType == eventType {
			matched = append(matched, entry)
		}
	}
	return matched
}

// fakeCipher marks ciphertext with a prefix instead of real AES.
type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext string) (string, error) { return "sealed:" + plaintext, nil }

func (fakeCipher) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "sealed:") {
		return "", fmt.Errorf("cipher: malformed ciphertext")
	}
	return strings.TrimPrefix(ciphertext, "sealed:"), nil
}

// fakeTOTP accepts exactly one configured code.
type fakeTOTP struct {
	secret    string
	validCode string
}

func (f *fakeTOTP) GenerateKey(_ string) (string, string, error) {
	return f.secret, "data:image/png;base64,ZmFrZQ==", nil
}

func (f *fakeTOTP) Verify(secret, candidateCode string) bool {
	return secret == f.secret && candidateCode == f.validCode
}

// # Test Harness

const (
	testEmail    = "admin@example.com"
	testPassword = "SecurePassword123!"
	testUserID   = "0191d1a0-0000-7000-8000-000000000001"
	testIP       = "203.0.113.7"
)

type harness struct {
	service  *auth.Service
	store    *fakeStore
	limiter  *fakeLimiter
	recorder *fakeRecorder
	totp     *fakeTOTP
}

// newHarness builds a service over fakes with one seeded account.
func newHarness(t *testing.T, mfaEnabled bool) *harness {
	t.Helper()

	hash, err := sec.HashPassword(testPassword)
	require.NoError(t, err)

	store := newFakeStore()
	store.users[testUserID] = &auth.User{
		ID:           testUserID,
		Email:        testEmail,
		Name:         "Ana",
		PasswordHash: hash,
		MFAEnabled:   mfaEnabled,
	}

	limiter := newFakeLimiter()
	recorder := &fakeRecorder{}
	totp := &fakeTOTP{secret: "JBSWY3DPEHPK3PXP", validCode: "123456"}

	service := auth.NewService(store, store, limiter, recorder, fakeCipher{}, totp)

	if mfaEnabled {
		seedMFASecret(t, store, totp.secret, nil)
	}

	return &harness{service: service, store: store, limiter: limiter, recorder: recorder, totp: totp}
}

// seedMFASecret installs a sealed secret row with optional plaintext backup codes.
func seedMFASecret(t *testing.T, store *fakeStore, plainSecret string, backupCodes []string) {
	t.Helper()

	hashes := make([]string, len(backupCodes))
	for i, code := range backupCodes {
		normalized := strings.ToUpper(strings.ReplaceAll(code, "-", ""))
		hash, err := sec.HashPassword(normalized)
		require.NoError(t, err)
		hashes[i] = hash
	}

	store.secrets[testUserID] = &auth.MFASecret{
		UserID:          testUserID,
		TOTPSecret:      "sealed:" + plainSecret,
		BackupCodes:     hashes,
		BackupCodesUsed: []int32{},
	}
}

func authorizeInput(code string) auth.AuthorizeInput {
	return auth.AuthorizeInput{
		Email:     testEmail,
		Password:  testPassword,
		TOTPCode:  code,
		IPAddress: testIP,
		UserAgent: "go-test",
	}
}

// # Authorize

/*
TestAuthorize_Success covers the happy path without MFA: the identity comes
back, exactly one "login" event is audited, and the serialized result leaks
no hash material.
*/
func TestAuthorize_Success(t *testing.T) {
	h := newHarness(t, false)

	identity, err := h.service.Authorize(context.Background(), authorizeInput(""))
	require.NoError(t, err)

	assert.Equal(t, testUserID, identity.ID)
	assert.Equal(t, testEmail, identity.Email)
	assert.Equal(t, "Ana", identity.Name)

	serialized, err := json.Marshal(identity)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), sec.HashFormatMarker)
	assert.NotContains(t, string(serialized), "sealed:")

	require.Len(t, h.recorder.entries, 1)
	assert.Equal(t, audit.EventLogin, h.recorder.entries[0].EventType)
	assert.Equal(t, testUserID, *h.recorder.entries[0].UserID)
}

/*
TestAuthorize_EnumerationResistance checks that unknown email, wrong
password, and missing input all yield byte-identical error messages, with
the true cause appearing only in audit metadata.
*/
func TestAuthorize_EnumerationResistance(t *testing.T) {
	h := newHarness(t, false)

	tests := []struct {
		name       string
		email      string
		password   string
		wantReason string
		wantUserID bool
	}{
		{"unknown_email", "nobody@example.com", testPassword, auth.ReasonUserNotFound, false},
		{"wrong_password", testEmail, "WrongPassword!", auth.ReasonInvalidPassword, true},
		{"missing_password", testEmail, "", auth.ReasonMissingCredentials, false},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(h.recorder.entries)

			_, err := h.service.Authorize(context.Background(), auth.AuthorizeInput{
				Email:     tt.email,
				Password:  tt.password,
				IPAddress: testIP,
			})
			require.Error(t, err)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, auth.CodeInvalidCredentials, appError.Code)
			messages = append(messages, appError.Message)

			require.Len(t, h.recorder.entries, before+1)
			entry := h.recorder.entries[before]
			assert.Equal(t, audit.EventLoginFailed, entry.EventType)
			assert.Equal(t, tt.wantReason, entry.Metadata[auth.MetaReason])

			if tt.wantUserID {
				require.NotNil(t, entry.UserID)
				assert.Equal(t, testUserID, *entry.UserID)
			} else {
				assert.Nil(t, entry.UserID)
			}
		})
	}

	// Identical client-facing message across every cause.
	for _, message := range messages {
		assert.Equal(t, messages[0], message)
	}
}

/*
TestAuthorize_StoreFailure: a user lookup that fails for infrastructure
reasons (not "no such row") is an internal error, never a credential
verdict: no 401, no lockout increment, no fabricated login_failed entry.
*/
func TestAuthorize_StoreFailure(t *testing.T) {
	h := newHarness(t, false)
	h.store.findByEmailErr = apperr.Internal(fmt.Errorf("connect: connection refused"))

	_, err := h.service.Authorize(context.Background(), authorizeInput(""))
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "INTERNAL_ERROR", appError.Code)
	assert.Equal(t, 500, appError.HTTPStatus)

	assert.Empty(t, h.recorder.entries)
	assert.Empty(t, h.limiter.failures)
}

/*
TestAuthorize_MFAGating: correct password on an MFA-enabled account with no
code fails with MFA_REQUIRED and writes NO audit entry — the attempt has no
outcome yet.
*/
func TestAuthorize_MFAGating(t *testing.T) {
	h := newHarness(t, true)

	identity, err := h.service.Authorize(context.Background(), authorizeInput(""))
	require.Error(t, err)
	assert.Nil(t, identity)

	assert.Equal(t, auth.CodeMFARequired, apperr.Code(err))
	assert.Empty(t, h.recorder.entries)
}

/*
TestAuthorize_MFASuccess: a valid TOTP code completes the login.
*/
func TestAuthorize_MFASuccess(t *testing.T) {
	h := newHarness(t, true)

	identity, err := h.service.Authorize(context.Background(), authorizeInput("123456"))
	require.NoError(t, err)

	serialized, err := json.Marshal(identity)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), sec.HashFormatMarker)

	require.Len(t, h.recorder.entries, 1)
	assert.Equal(t, audit.EventLogin, h.recorder.entries[0].EventType)
}

/*
TestAuthorize_InvalidMFACode: a wrong code (neither TOTP nor backup) fails
with INVALID_MFA_CODE and audits login_failed with reason=invalid_mfa.
*/
func TestAuthorize_InvalidMFACode(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.service.Authorize(context.Background(), authorizeInput("000000"))
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, auth.CodeInvalidMFACode, appError.Code)
	assert.Equal(t, 401, appError.HTTPStatus)

	failed := h.recorder.ofType(audit.EventLoginFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, auth.ReasonInvalidMFA, failed[0].Metadata[auth.MetaReason])
}

/*
TestAuthorize_BackupCodeSingleUse: a backup code works exactly once. The
consumption is audited with its index and the remaining count, and reuse
fails.
*/
func TestAuthorize_BackupCodeSingleUse(t *testing.T) {
	h := newHarness(t, true)
	seedMFASecret(t, h.store, h.totp.secret, []string{"AB3D-EF5G-HJ7K", "MN2P-QR4S-TU6V"})

	// First use succeeds (code is normalized, so lowercase input works too).
	identity, err := h.service.Authorize(context.Background(), authorizeInput("ab3d-ef5g-hj7k"))
	require.NoError(t, err)
	require.NotNil(t, identity)

	used := h.recorder.ofType(audit.EventBackupCodeUsed)
	require.Len(t, used, 1)
	assert.Equal(t, 0, used[0].Metadata[auth.MetaCodeIndex])
	assert.Equal(t, 1, used[0].Metadata[auth.MetaCodesRemaining])

	// Reuse of the consumed code fails.
	_, err = h.service.Authorize(context.Background(), authorizeInput("AB3D-EF5G-HJ7K"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeInvalidMFACode, apperr.Code(err))

	// The other code is still valid.
	_, err = h.service.Authorize(context.Background(), authorizeInput("MN2P-QR4S-TU6V"))
	assert.NoError(t, err)
}

/*
TestAuthorize_Lockout: after MaxLoginAttempts failures, further attempts are
rejected with RATE_LIMITED before any credential check, and a successful
login after reset clears the counter.
*/
func TestAuthorize_Lockout(t *testing.T) {
	h := newHarness(t, false)

	for i := 0; i < auth.MaxLoginAttempts; i++ {
		_, err := h.service.Authorize(context.Background(), auth.AuthorizeInput{
			Email:     testEmail,
			Password:  "WrongPassword!",
			IPAddress: testIP,
		})
		require.Error(t, err)
		assert.Equal(t, auth.CodeInvalidCredentials, apperr.Code(err))
	}

	// Even the correct password is rejected while locked out.
	_, err := h.service.Authorize(context.Background(), authorizeInput(""))
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "RATE_LIMITED", appError.Code)
	assert.Equal(t, 429, appError.HTTPStatus)

	locked := h.recorder.ofType(audit.EventLoginFailed)
	assert.Equal(t, auth.ReasonLockedOut, locked[len(locked)-1].Metadata[auth.MetaReason])

	// A different IP is not affected.
	_, err = h.service.Authorize(context.Background(), auth.AuthorizeInput{
		Email:     testEmail,
		Password:  testPassword,
		IPAddress: "198.51.100.9",
	})
	assert.NoError(t, err)
}

// # Logout

/*
TestLogout_Audits verifies session termination leaves a logout event.
*/
func TestLogout_Audits(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.service.Logout(context.Background(), testUserID, testIP, "go-test"))

	require.Len(t, h.recorder.entries, 1)
	entry := h.recorder.entries[0]
	assert.Equal(t, audit.EventLogout, entry.EventType)
	assert.Equal(t, testUserID, *entry.UserID)
}
