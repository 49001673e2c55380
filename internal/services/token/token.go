// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues one-time secrets: email verification codes and
// password reset tokens. Only their SHA-256 digests are ever stored.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// CodeLength is the number of characters in a verification code.
	CodeLength = 6
	// ResetTokenBytes is the entropy of a reset token.
	ResetTokenBytes = 32
)

// codeAlphabet holds the characters a verification code is drawn from.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxUnbiased is the largest multiple of len(codeAlphabet) that fits in a byte.
const maxUnbiased = 256 - 256%len(codeAlphabet)

// Issuer generates codes and tokens from a random source.
type Issuer struct {
	rand io.Reader
}

// NewIssuer returns an Issuer backed by crypto/rand.
func NewIssuer() *Issuer {
	return &Issuer{rand: rand.Reader}
}

// NewIssuerWithReader is for tests that need deterministic output.
func NewIssuerWithReader(r io.Reader) *Issuer {
	return &Issuer{rand: r}
}

// GenerateVerificationCode returns a 6-character code from A-Z0-9.
// Bytes that would bias the distribution are rejected and redrawn.
func (i *Issuer) GenerateVerificationCode() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)

	for len(code) < CodeLength {
		if _, err := io.ReadFull(i.rand, buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}

	return string(code), nil
}

// GenerateResetToken returns a URL-safe token of 32 random bytes.
func (i *Issuer) GenerateResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(i.rand, b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken computes the hex SHA-256 digest stored in place of a code or token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// NormalizeCode trims whitespace and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
