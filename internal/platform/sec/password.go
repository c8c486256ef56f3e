// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Argon2id hashing, AES-GCM
// secret encryption, TOTP verification, JWT signing) from the domain logic.
// It acts as an Infrastructure service injected into the Application layer
// via small interfaces and constructor injection.
package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly created hashes. Verification never uses these
// directly: the stored hash is self-describing and carries its own parameters.
const (
	argonMemory      = 64 * 1024 // KiB (64 MiB)
	argonTime        = 3
	argonParallelism = 4
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// HashFormatMarker identifies an Argon2id hash in PHC string format.
// No API response may ever contain this substring.
const HashFormatMarker = "$argon2id$"

// HashPassword hashes a plain-text password with Argon2id and returns it in
// the self-describing PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<base64 salt>$<base64 hash>
func HashPassword(plainTextPassword string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(plainTextPassword), salt, argonTime, argonMemory, argonParallelism, argonKeyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonTime,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// VerifyPassword compares a plain-text password with a stored Argon2id hash.
//
// The hash's own parameters are used for recomputation, so hashes created
// with older cost settings keep verifying after the defaults change. The
// final comparison is constant-time. A malformed hash verifies as false,
// never as an error: the caller translates false into a generic,
// enumeration-resistant failure.
func VerifyPassword(plainTextPassword, encodedHash string) bool {
	salt, expected, time, memory, parallelism, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(plainTextPassword), salt, time, memory, parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// decodeArgon2Hash parses a PHC-format Argon2id string into its components.
func decodeArgon2Hash(encodedHash string) (salt, hash []byte, time, memory uint32, parallelism uint8, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, fmt.Errorf("sec: unsupported hash format")
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("sec: malformed hash version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, fmt.Errorf("sec: incompatible argon2 version %d", version)
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("sec: malformed hash parameters: %w", err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("sec: malformed hash salt: %w", err)
	}

	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("sec: malformed hash digest: %w", err)
	}

	return salt, hash, time, memory, parallelism, nil
}
