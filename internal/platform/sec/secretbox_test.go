// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec_test

import (
	"encoding/base64"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arboria/treeatlas/internal/platform/sec"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

/*
TestNewSecretBox_KeyValidation rejects keys that are not exactly 32 bytes
of hex.
*/
func TestNewSecretBox_KeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid_key", testHexKey, false},
		{"empty_key", "", true},
		{"short_key", "abcdef", true},
		{"non_hex_key", strings.Repeat("zz", 32), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := sec.NewSecretBox(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, box)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, box)
			}
		})
	}
}

/*
TestSecretBox_RoundTrip encrypts and decrypts a TOTP secret, and verifies
that two encryptions of the same plaintext differ (random nonce).
*/
func TestSecretBox_RoundTrip(t *testing.T) {
	box, err := sec.NewSecretBox(testHexKey)
	require.NoError(t, err)

	const plaintext = "JBSWY3DPEHPK3PXP"

	first, err := box.Encrypt(plaintext)
	require.NoError(t, err)

	second, err := box.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, plaintext)

	decrypted, err := box.Decrypt(first)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

/*
TestSecretBox_DecryptFailures ensures every corruption mode surfaces as
ErrDecryptionFailed, distinguishable from a wrong-code failure.
*/
func TestSecretBox_DecryptFailures(t *testing.T) {
	box, err := sec.NewSecretBox(testHexKey)
	require.NoError(t, err)

	ciphertext, err := box.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	// Flip one bit in the sealed payload.
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	otherBox, err := sec.NewSecretBox(strings.Repeat("ff", 32))
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
	}{
		{"tampered_ciphertext", func() error { _, e := box.Decrypt(tampered); return e }},
		{"wrong_key", func() error { _, e := otherBox.Decrypt(ciphertext); return e }},
		{"invalid_base64", func() error { _, e := box.Decrypt("%%%not-base64%%%"); return e }},
		{"too_short", func() error { _, e := box.Decrypt(base64.StdEncoding.EncodeToString([]byte{1, 2, 3})); return e }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, sec.ErrDecryptionFailed)
		})
	}
}

/*
TestGenerateBackupCodes checks count, format, and freshness of generated
backup codes.
*/
func TestGenerateBackupCodes(t *testing.T) {
	codeFormat := regexp.MustCompile(`^[0-9A-HJ-NP-Z]{4}-[0-9A-HJ-NP-Z]{4}-[0-9A-HJ-NP-Z]{4}$`)

	codes, err := sec.GenerateBackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		assert.Regexp(t, codeFormat, code)
		// I and O are excluded from the alphabet for readability.
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "O")
		assert.False(t, seen[code], "duplicate code in a single batch: %s", code)
		seen[code] = true
	}

	// A second setup call must produce a fresh batch.
	secondBatch, err := sec.GenerateBackupCodes(10)
	require.NoError(t, err)
	for _, code := range secondBatch {
		assert.False(t, seen[code], "code reused across batches: %s", code)
	}
}
