// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package sec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// ErrDecryptionFailed is returned when a stored ciphertext is corrupt, has
// been tampered with, or was encrypted under a different key.
//
// It is deliberately distinguishable from a code-mismatch failure: a
// decryption failure is an infrastructure problem (500-class), not a wrong
// second factor.
var ErrDecryptionFailed = errors.New("sec: decryption failed")

// SecretBox envelope-encrypts small secrets (TOTP seeds) for at-rest storage
// using AES-256-GCM under a server-side master key.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox builds a [SecretBox] from a 64-character hex key (32 bytes).
//
// The key is configuration (MFA_ENCRYPTION_KEY) and is independent from the
// session signing secret so the two can be rotated separately.
func NewSecretBox(hexKey string) (*SecretBox, error) {
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("sec: MFA encryption key must be a 64-character hex string (32 bytes)")
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("sec: MFA encryption key is not valid hex: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to initialize GCM: %w", err)
	}

	return &SecretBox{aead: aead}, nil
}

// Encrypt seals a plaintext secret and returns base64(nonce || ciphertext).
//
// A fresh random 96-bit nonce is generated per call; the GCM auth tag makes
// any at-rest tampering detectable on decrypt.
func (box *SecretBox) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, box.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sec: failed to generate nonce: %w", err)
	}

	sealed := box.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by [SecretBox.Encrypt].
//
// Any failure (bad base64, truncated payload, wrong key, flipped bit) returns
// [ErrDecryptionFailed]; the underlying cause is wrapped for server-side logs.
func (box *SecretBox) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	nonceSize := box.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryptionFailed)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := box.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// # Backup Codes

// backupCodeAlphabet excludes I and O so codes stay unambiguous when read
// from paper.
const backupCodeAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	backupCodeSegments      = 3
	backupCodeSegmentLength = 4
)

// GenerateBackupCodes generates n cryptographically random single-use codes
// in the human-typable format XXXX-XXXX-XXXX.
//
// Codes are returned in plain text exactly once; callers must store only a
// one-way hash. Every call produces a fresh, independent batch.
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)

	for i := 0; i < n; i++ {
		segments := make([]string, 0, backupCodeSegments)
		for j := 0; j < backupCodeSegments; j++ {
			segment, err := randomSegment(backupCodeSegmentLength)
			if err != nil {
				return nil, err
			}
			segments = append(segments, segment)
		}
		codes = append(codes, segments[0]+"-"+segments[1]+"-"+segments[2])
	}

	return codes, nil
}

// randomSegment draws length characters from the backup-code alphabet using
// rejection sampling, so no character is favored by modulo bias.
func randomSegment(length int) (string, error) {
	// Largest multiple of the alphabet size that fits in a byte.
	maxUnbiased := byte(math.MaxUint8 / len(backupCodeAlphabet) * len(backupCodeAlphabet))

	out := make([]byte, 0, length)
	buf := make([]byte, 1)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("sec: failed to generate backup code: %w", err)
		}
		if buf[0] >= maxUnbiased {
			continue
		}
		out = append(out, backupCodeAlphabet[int(buf[0])%len(backupCodeAlphabet)])
	}

	return string(out), nil
}
