// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arboria/treeatlas/internal/platform/sec"
)

/*
TestGenerateTOTPKey verifies the provisioning key carries the issuer and
account, and that its secret drives a verifiable code.
*/
func TestGenerateTOTPKey(t *testing.T) {
	key, err := sec.GenerateTOTPKey("treeatlas.cr", "admin@example.com")
	require.NoError(t, err)

	assert.Equal(t, "treeatlas.cr", key.Issuer())
	assert.Equal(t, "admin@example.com", key.AccountName())
	assert.NotEmpty(t, key.Secret())
	assert.True(t, strings.HasPrefix(key.URL(), "otpauth://totp/"))
}

/*
TestVerifyTOTP_Window checks the ±1 step (30s) tolerance: the current and
adjacent codes verify, anything further out (or garbage) does not.
*/
func TestVerifyTOTP_Window(t *testing.T) {
	key, err := sec.GenerateTOTPKey("treeatlas.cr", "admin@example.com")
	require.NoError(t, err)
	secret := key.Secret()

	currentCode, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)

	previousCode, err := totp.GenerateCode(secret, time.Now().UTC().Add(-30*time.Second))
	require.NoError(t, err)

	staleCode, err := totp.GenerateCode(secret, time.Now().UTC().Add(-5*time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"current_step", currentCode, true},
		{"previous_step", previousCode, true},
		{"stale_code", staleCode, false},
		{"non_numeric", "abcdef", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sec.VerifyTOTP(secret, tt.code))
		})
	}
}

/*
TestQRCodeDataURL renders the provisioning QR as an inline PNG data URL.
*/
func TestQRCodeDataURL(t *testing.T) {
	key, err := sec.GenerateTOTPKey("treeatlas.cr", "admin@example.com")
	require.NoError(t, err)

	dataURL, err := sec.QRCodeDataURL(key)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
	assert.Greater(t, len(dataURL), 100)
}
