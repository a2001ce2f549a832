// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package crypto seals stored VCS access tokens with AES-GCM under a
// key derived from the configured secret.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters; interactive-use cost from the x/crypto docs.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
	saltLength   = 16
	minimumNonce = 12
)

var defaultSealer *Sealer

// InitDefault sets up the process-wide sealer from the configured
// secret key
func InitDefault(secretKey string) error {
	sealer, err := NewSealer(secretKey)
	if err != nil {
		return err
	}
	defaultSealer = sealer
	return nil
}

// Default returns the process-wide sealer, or nil when InitDefault was
// never called
func Default() *Sealer {
	return defaultSealer
}

// Sealer encrypts and decrypts short secrets under one passphrase
type Sealer struct {
	passphrase []byte
}

// NewSealer creates a sealer from the configured secret key
func NewSealer(secretKey string) (*Sealer, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is empty")
	}
	return &Sealer{passphrase: []byte(secretKey)}, nil
}

// Seal encrypts plainText and returns base64(salt || nonce || ciphertext).
// A fresh salt and nonce are drawn per call, so sealing the same value
// twice yields different outputs.
func (s *Sealer) Seal(plainText []byte) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, plainText, nil)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Open decrypts a value produced by Seal
func (s *Sealer) Open(encoded string) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(payload) < saltLength+minimumNonce {
		return nil, fmt.Errorf("sealed value too short")
	}
	salt := payload[:saltLength]
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	rest := payload[saltLength:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed value too short")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
