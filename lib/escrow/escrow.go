// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package escrow produces organizer recovery bundles: age-encrypted
// copies of a ticket's private payload, sealed to the organizer's
// recovery keys at issuance time. If every key server in a deployment
// is lost, the threshold path is gone; the recovery bundle is the only
// remaining way to reconstruct a holder's ticket, which is why issuing
// with recovery keys configured is the recommended posture.
//
// Bundles are base64 strings so they can sit in JSON exports and cold
// storage unchanged. Decrypted payloads come back in secret.Buffer
// memory (locked against swap, zeroed on close).
package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/attenda-foundation/attenda/lib/secret"
)

// ErrNoRecipients is returned by Seal when no recovery keys are
// supplied.
var ErrNoRecipients = errors.New("escrow: at least one recovery key is required")

// Keypair is an age x25519 recovery keypair. The private half lives in
// locked memory; the public half is safe to publish in deployment
// config. Close releases the private key.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... identity. Never log it,
	// never put it in CLI arguments.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... recipient string.
	PublicKey string
}

// Close zeros and releases the private key. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a recovery keypair. The private key should
// move to offline storage immediately; nothing in the issuance path
// ever needs it.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("escrow: generating keypair: %w", err)
	}

	// The identity string is briefly on the heap; the locked buffer
	// is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("escrow: protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// ValidateRecoveryKey checks that a configured recovery key is a
// well-formed age recipient before any ticket is sealed to it.
func ValidateRecoveryKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("escrow: invalid recovery key: %w", err)
	}
	return nil
}

// Seal encrypts a ticket payload to the given recovery keys and
// returns the base64 bundle. Any recipient's private key can open it;
// organizers typically configure one operational key and one offline
// escrow key.
//
// The plaintext is borrowed, not retained.
func Seal(plaintext []byte, recoveryKeys []string) (string, error) {
	if len(recoveryKeys) == 0 {
		return "", ErrNoRecipients
	}

	recipients := make([]age.Recipient, 0, len(recoveryKeys))
	for _, key := range recoveryKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("escrow: parsing recovery key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipients...)
	if err != nil {
		return "", fmt.Errorf("escrow: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("escrow: writing payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("escrow: finalizing bundle: %w", err)
	}

	return encodeBundle(sealed.Bytes()), nil
}

// Open decrypts a recovery bundle with a recovery private key. The key
// is borrowed and not closed; the returned buffer holds the payload
// and must be closed by the caller.
func Open(bundle string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing recovery key: %w", err)
	}

	raw, err := decodeBundle(bundle)
	if err != nil {
		return nil, err
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("escrow: opening bundle: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("escrow: reading payload: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("escrow: bundle contained no payload")
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("escrow: protecting payload: %w", err)
	}
	return buffer, nil
}
