// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives completed diagnostic results locally.
//
// This file implements the at-rest encryption of result payloads:
// AES-256-GCM with a PBKDF2-SHA-256 derived key. The salt lives in the
// archive's meta table; the passphrase never touches disk.
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize  = 32
	saltSize = 32
	// kdfIterations follows the OWASP recommendation for PBKDF2-SHA-256.
	kdfIterations = 600000
)

var (
	// ErrDecryptionFailed indicates a wrong passphrase or a tampered
	// payload.
	ErrDecryptionFailed = errors.New("payload decryption failed")
)

// sealer encrypts and decrypts result payloads.
type sealer struct {
	aead cipher.AEAD
}

// newSealer derives the archive key from passphrase and salt.
func newSealer(passphrase string, salt []byte) (*sealer, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead}, nil
}

// seal encrypts plaintext, binding it to the record's call id so a blob
// cannot be silently moved between records. Output is nonce|ciphertext.
func (s *sealer) seal(plaintext []byte, callID string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(callID)), nil
}

// open decrypts a sealed blob.
func (s *sealer) open(blob []byte, callID string) ([]byte, error) {
	if len(blob) < s.aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	nonce, ciphertext := blob[:s.aead.NonceSize()], blob[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(callID))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// newSalt generates a fresh KDF salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// zero wipes key material.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
