// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package session creates the short-lived, address-scoped credentials
// the threshold encryption client presents to key servers in lieu of
// re-signing every request.
//
// The flow is two-step: Create builds an unsigned session with a fresh
// ephemeral request key, then Sign obtains exactly one wallet
// signature over the canonical personal-message challenge. After that,
// every key-server request is signed by the ephemeral key — the wallet
// is never prompted again within the TTL. A signed credential may
// serve any number of concurrent decrypts for its address.
//
// The address a credential claims is never taken on faith: it must be
// the address the embedded wallet public key derives (WalletAddress),
// and the wallet signature must verify under that key. Key servers
// check both on every fetch; a credential that fails either check
// authenticates nothing.
package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/ref"
)

// Errors returned by session creation and verification.
var (
	// ErrAuthenticationDeclined is returned when the wallet refuses
	// or fails to sign the challenge. The decrypt flow aborts before
	// any key server is contacted; no partial session is retained.
	ErrAuthenticationDeclined = errors.New("session: authentication declined")

	// ErrExpired is returned when a credential is presented after
	// its TTL has elapsed. The caller must create and sign a fresh
	// session and restart the flow.
	ErrExpired = errors.New("session: credential expired")

	// ErrInvalidSignature is returned by Verify when the credential
	// does not authenticate its claimed address: the wallet key does
	// not derive the address, or a signature fails to verify.
	ErrInvalidSignature = errors.New("session: invalid wallet signature")
)

// walletSchemeEd25519 is the signature-scheme flag prefixed to the
// wallet public key before hashing it into an address. Only Ed25519
// wallets exist in this deployment; the flag keeps future schemes
// from colliding in the address space.
const walletSchemeEd25519 = 0x00

// WalletAddress derives the ledger address owned by an Ed25519 wallet
// key: BLAKE3 of the scheme flag followed by the raw public key. This
// derivation is what binds a credential's claimed address to the key
// that signed its challenge; key servers recompute it on every fetch.
func WalletAddress(walletKey ed25519.PublicKey) (ref.Address, error) {
	if len(walletKey) != ed25519.PublicKeySize {
		return ref.Address{}, fmt.Errorf("session: wallet key has %d bytes, want %d",
			len(walletKey), ed25519.PublicKeySize)
	}
	sum := blake3.Sum256(append([]byte{walletSchemeEd25519}, walletKey...))
	return ref.AddressFromBytes(sum[:])
}

// SignFunc obtains a signature over the canonical challenge from an
// externally supplied signing capability — in production, the
// holder's wallet. Returning an error (including a user dismissal)
// aborts the flow with ErrAuthenticationDeclined.
type SignFunc func(message []byte) ([]byte, error)

// Session is an unsigned session: the challenge parameters plus an
// ephemeral Ed25519 request keypair. It becomes presentable only
// after Sign.
type Session struct {
	address    ref.Address
	packageID  ref.ObjectID
	ttl        time.Duration
	createdAt  time.Time
	requestKey ed25519.PrivateKey
}

// Create builds a session challenge bound to the holder address, the
// scheme's package namespace, and an expiry derived from ttl. The
// ephemeral request keypair is generated here; its public half is
// part of the signed challenge, which is what lets key servers accept
// ephemeral-key request signatures as standing in for the wallet.
func Create(address ref.Address, packageID ref.ObjectID, ttl time.Duration, clk clock.Clock) (*Session, error) {
	if address.IsZero() {
		return nil, fmt.Errorf("session: address is required")
	}
	if packageID.IsZero() {
		return nil, fmt.Errorf("session: package ID is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session: TTL must be positive, got %v", ttl)
	}

	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("session: generating request key: %w", err)
	}

	return &Session{
		address:    address,
		packageID:  packageID,
		ttl:        ttl,
		createdAt:  clk.Now().UTC().Truncate(time.Second),
		requestKey: private,
	}, nil
}

// PersonalMessage returns the canonical challenge bytes the wallet
// signs. The layout is fixed: key servers rebuild it from credential
// fields, so any change here is a protocol break. It is deliberately
// human-readable — wallets display it to the user at the signature
// prompt.
func (s *Session) PersonalMessage() []byte {
	return personalMessage(s.address, s.packageID, s.createdAt, s.ttl, s.requestKey.Public().(ed25519.PublicKey))
}

func personalMessage(address ref.Address, packageID ref.ObjectID, createdAt time.Time, ttl time.Duration, requestKey ed25519.PublicKey) []byte {
	return fmt.Appendf(nil,
		"Accessing keys of package %s for %d minutes from %d, request key %x, address %s",
		packageID, int64(ttl/time.Minute), createdAt.Unix(), requestKey, address)
}

// Sign obtains the wallet signature over the canonical challenge and
// returns the presentable credential. The wallet key must derive the
// session's address and the returned signature must verify under it;
// either failure, like a refused or failing signFn, propagates as
// ErrAuthenticationDeclined. The session remains unsigned and nothing
// has touched the network.
func (s *Session) Sign(walletKey ed25519.PublicKey, signFn SignFunc) (*Credential, error) {
	derived, err := WalletAddress(walletKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationDeclined, err)
	}
	if derived != s.address {
		return nil, fmt.Errorf("%w: wallet key derives address %s, session is for %s",
			ErrAuthenticationDeclined, derived, s.address)
	}

	message := s.PersonalMessage()
	signature, err := signFn(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationDeclined, err)
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: wallet returned an empty signature", ErrAuthenticationDeclined)
	}
	if !ed25519.Verify(walletKey, message, signature) {
		return nil, fmt.Errorf("%w: wallet signature does not cover the challenge", ErrAuthenticationDeclined)
	}

	return &Credential{
		Address:         s.address,
		PackageID:       s.packageID,
		CreatedAt:       s.createdAt.Unix(),
		TTLMinutes:      int64(s.ttl / time.Minute),
		RequestKey:      s.requestKey.Public().(ed25519.PublicKey),
		WalletKey:       append([]byte(nil), walletKey...),
		WalletSignature: signature,

		requestKey: s.requestKey,
	}, nil
}

// Credential is a signed session: the wire form presented to every
// key server. Valid only for the address that produced the wallet
// signature; expires at CreatedAt + TTLMinutes; no delegation.
type Credential struct {
	// Address is the holder address the session is scoped to.
	Address ref.Address `cbor:"1,keyasint"`

	// PackageID is the ledger module namespace authorized to grant
	// access for this deployment.
	PackageID ref.ObjectID `cbor:"2,keyasint"`

	// CreatedAt is the challenge creation time, Unix seconds.
	CreatedAt int64 `cbor:"3,keyasint"`

	// TTLMinutes is the credential lifetime in minutes.
	TTLMinutes int64 `cbor:"4,keyasint"`

	// RequestKey is the ephemeral Ed25519 public key that signs
	// individual key-server requests.
	RequestKey []byte `cbor:"5,keyasint"`

	// WalletSignature covers the canonical personal message.
	WalletSignature []byte `cbor:"6,keyasint"`

	// WalletKey is the wallet public key that produced
	// WalletSignature. Address must be the address this key derives;
	// verifiers check the derivation, so a credential cannot claim
	// an address its wallet does not own.
	WalletKey []byte `cbor:"7,keyasint"`

	// requestKey is the ephemeral private half. Never serialized;
	// a credential received over the wire cannot sign requests.
	requestKey ed25519.PrivateKey
}

// ExpiresAt returns the instant the credential stops being valid.
func (c *Credential) ExpiresAt() time.Time {
	return time.Unix(c.CreatedAt, 0).Add(time.Duration(c.TTLMinutes) * time.Minute)
}

// Expired reports whether the credential's TTL has elapsed at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt())
}

// Message rebuilds the canonical challenge from the credential
// fields. Key servers verify WalletSignature against these bytes.
func (c *Credential) Message() []byte {
	return personalMessage(c.Address, c.PackageID, time.Unix(c.CreatedAt, 0),
		time.Duration(c.TTLMinutes)*time.Minute, ed25519.PublicKey(c.RequestKey))
}

// SignRequest signs request bytes with the ephemeral request key.
// Panics if called on a credential that was decoded from the wire
// rather than produced by Sign — only the session creator holds the
// private half.
func (c *Credential) SignRequest(request []byte) []byte {
	if c.requestKey == nil {
		panic("session: SignRequest on a wire-decoded credential")
	}
	return ed25519.Sign(c.requestKey, request)
}

// Verify checks a credential as a key server does: TTL against now,
// the address↔key binding (Address must be what the embedded wallet
// key derives), and the wallet signature over the rebuilt challenge.
// The binding check is what makes the claimed address trustworthy;
// without it the address is a self-asserted string.
func (c *Credential) Verify(now time.Time) error {
	if c.Expired(now) {
		return fmt.Errorf("%w: expired at %s", ErrExpired, c.ExpiresAt().UTC().Format(time.RFC3339))
	}
	derived, err := WalletAddress(c.WalletKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if derived != c.Address {
		return fmt.Errorf("%w: wallet key derives address %s, credential claims %s",
			ErrInvalidSignature, derived, c.Address)
	}
	if len(c.RequestKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: request key has %d bytes, want %d", ErrInvalidSignature, len(c.RequestKey), ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(c.WalletKey), c.Message(), c.WalletSignature) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyRequest checks an ephemeral-key signature over request bytes.
// Run after Verify has established the credential itself.
func (c *Credential) VerifyRequest(request, signature []byte) error {
	if len(c.RequestKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: request key has %d bytes, want %d", ErrInvalidSignature, len(c.RequestKey), ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(c.RequestKey), request, signature) {
		return fmt.Errorf("%w: request signature", ErrInvalidSignature)
	}
	return nil
}
