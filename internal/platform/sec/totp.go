// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP verification window: 30-second steps with a tolerance of one step in
// either direction to absorb client clock drift.
const (
	totpPeriod = 30
	totpSkew   = 1
	totpDigits = otp.DigitsSix
)

// totpSecretSize is the seed length in bytes (160 bits, RFC 4226 baseline).
const totpSecretSize = 20

// qrCodeSize is the pixel width/height of generated provisioning QR codes.
const qrCodeSize = 256

// GenerateTOTPKey creates a fresh TOTP key for the given account, ready to be
// rendered as an otpauth:// provisioning URI.
func GenerateTOTPKey(issuer, accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  totpSecretSize,
		Period:      totpPeriod,
		Digits:      totpDigits,
	})
	if err != nil {
		return nil, fmt.Errorf("sec: failed to generate TOTP key: %w", err)
	}

	return key, nil
}

// VerifyTOTP checks a candidate 6-digit code against a decrypted TOTP secret.
//
// It reports only true/false: the caller must not learn (nor leak to the
// client) whether the code was expired, reused, or simply wrong.
func VerifyTOTP(secret, candidateCode string) bool {
	valid, err := totp.ValidateCustom(candidateCode, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})

	return err == nil && valid
}

// QRCodeDataURL renders a TOTP key's provisioning URI as a PNG data URL
// suitable for direct embedding in an <img> tag.
func QRCodeDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("sec: failed to render QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("sec: failed to encode QR code PNG: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
