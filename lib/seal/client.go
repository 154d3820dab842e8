// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/corvus-ch/shamir"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/policy"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/secret"
	"github.com/attenda-foundation/attenda/lib/session"
)

// Errors returned by encrypt and decrypt flows. Callers branch with
// errors.Is; the wrapped detail names the failing server where one
// exists.
var (
	// ErrEncryptionService is returned when share registration fails
	// on any server. No envelope is returned: a partially registered
	// envelope might never reach threshold, so the caller must not
	// persist anything from the attempt.
	ErrEncryptionService = errors.New("seal: encryption service unavailable")

	// ErrAccessDenied is returned when a key server evaluates the
	// approval descriptor and refuses. The session may be perfectly
	// valid; the ledger policy just does not entitle this address.
	ErrAccessDenied = errors.New("seal: access denied by key server")

	// ErrInsufficientShares is returned when the responding servers'
	// combined weight is below the envelope threshold. Retryable once
	// more servers are reachable.
	ErrInsufficientShares = errors.New("seal: insufficient key shares")
)

// ServerConfig describes one key server in the committee.
type ServerConfig struct {
	// ID is the server's ledger registration object.
	ID ref.ObjectID `yaml:"id"`

	// URL is the server's base URL.
	URL string `yaml:"url"`

	// Weight is the number of key shares the server holds. Must be
	// at least 1.
	Weight int `yaml:"weight"`
}

// Config configures a threshold encryption client.
type Config struct {
	// PackageID is the deployed contract package; it namespaces the
	// approval target and the session scope.
	PackageID ref.ObjectID

	// Threshold is the share weight required to decrypt.
	Threshold int

	// Servers is the weighted committee. Order is not significant.
	Servers []ServerConfig

	// HTTPClient is the transport to the key servers. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock drives credential expiry checks. Defaults to real time.
	Clock clock.Clock
}

// Client encrypts and decrypts envelopes against a fixed key-server
// committee. Safe for concurrent use.
type Client struct {
	packageID   ref.ObjectID
	threshold   int
	servers     []ServerConfig
	totalWeight int
	httpClient  *http.Client
	clock       clock.Clock
}

// NewClient validates the committee configuration.
//
// The weight arithmetic lives in GF(2^8): total weight is capped at
// 255 shares, and the underlying secret sharing needs at least 2 of
// them, so thresholds start at 2.
func NewClient(cfg Config) (*Client, error) {
	if cfg.PackageID.IsZero() {
		return nil, fmt.Errorf("seal: package ID is required")
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("seal: at least one key server is required")
	}

	totalWeight := 0
	for i, server := range cfg.Servers {
		if server.ID.IsZero() {
			return nil, fmt.Errorf("seal: server %d has no ID", i)
		}
		if server.URL == "" {
			return nil, fmt.Errorf("seal: server %s has no URL", server.ID)
		}
		if server.Weight < 1 {
			return nil, fmt.Errorf("seal: server %s has weight %d, want at least 1", server.ID, server.Weight)
		}
		totalWeight += server.Weight
	}
	if totalWeight > 255 {
		return nil, fmt.Errorf("seal: total server weight %d exceeds the 255-share limit", totalWeight)
	}
	if cfg.Threshold < 2 {
		return nil, fmt.Errorf("seal: threshold %d is below the minimum of 2", cfg.Threshold)
	}
	if cfg.Threshold > totalWeight {
		return nil, fmt.Errorf("seal: threshold %d exceeds total server weight %d", cfg.Threshold, totalWeight)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	servers := make([]ServerConfig, len(cfg.Servers))
	copy(servers, cfg.Servers)
	for i := range servers {
		servers[i].URL = strings.TrimSuffix(servers[i].URL, "/")
	}

	return &Client{
		packageID:   cfg.PackageID,
		threshold:   cfg.Threshold,
		servers:     servers,
		totalWeight: totalWeight,
		httpClient:  httpClient,
		clock:       clk,
	}, nil
}

// payloadKeyInfo is the HKDF domain separator for envelope payload
// keys. The encryption ID is appended, binding each derived key to
// exactly one envelope.
const payloadKeyInfo = "attenda 2026-01-12 seal payload key\x00"

// derivePayloadKey derives the AEAD key from the data encryption key
// and the encryption ID. The caller zeros the returned key after use.
func derivePayloadKey(dek, encryptionID []byte) ([]byte, error) {
	info := make([]byte, 0, len(payloadKeyInfo)+len(encryptionID))
	info = append(info, payloadKeyInfo...)
	info = append(info, encryptionID...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, dek, nil, info), key); err != nil {
		return nil, fmt.Errorf("seal: deriving payload key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext bound to the given access policy and
// registers the key shares with every server in the committee. On any
// registration failure the whole operation fails with
// ErrEncryptionService and nothing usable is returned; the shares
// already registered for the abandoned ID are inert garbage the
// servers can expire.
//
// The plaintext is borrowed, not retained.
func (c *Client) Encrypt(ctx context.Context, policyID ref.ObjectID, plaintext []byte) (*Envelope, error) {
	if policyID.IsZero() {
		return nil, fmt.Errorf("seal: policy ID is required")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("seal: refusing to encrypt an empty payload")
	}

	// Fresh ID: policy prefix plus a random nonce. Never reused; a
	// re-encryption of the same ticket gets a new ID.
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: generating ID nonce: %w", err)
	}
	encryptionID := append(policyID.Bytes(), nonce...)

	dek, err := secret.NewRandom(32)
	if err != nil {
		return nil, fmt.Errorf("seal: generating data encryption key: %w", err)
	}
	defer dek.Close()

	shares, err := shamir.Split(dek.Bytes(), c.totalWeight, c.threshold)
	if err != nil {
		return nil, fmt.Errorf("seal: splitting data encryption key: %w", err)
	}
	defer func() {
		for _, share := range shares {
			secret.Zero(share)
		}
	}()

	prefix, err := encodeEnvelopePrefix(&envelopeHeader{
		EncryptionID: encryptionID,
		PackageID:    c.packageID,
		Threshold:    c.threshold,
		TotalWeight:  c.totalWeight,
	})
	if err != nil {
		return nil, err
	}

	key, err := derivePayloadKey(dek.Bytes(), encryptionID)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("seal: constructing AEAD: %w", err)
	}
	aeadNonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(aeadNonce); err != nil {
		return nil, fmt.Errorf("seal: generating AEAD nonce: %w", err)
	}

	ciphertext := append(prefix, aeadNonce...)
	ciphertext = aead.Seal(ciphertext, aeadNonce, plaintext, prefix)

	if err := c.registerShares(ctx, encryptionID, shares); err != nil {
		return nil, err
	}

	return &Envelope{
		PolicyID:     policyID,
		EncryptionID: encryptionID,
		PackageID:    c.packageID,
		Threshold:    c.threshold,
		TotalWeight:  c.totalWeight,
		Ciphertext:   ciphertext,
		headerEnd:    len(prefix),
	}, nil
}

// registerShares distributes the Shamir shares across the committee,
// weight entries per server, in x-coordinate order.
func (c *Client) registerShares(ctx context.Context, encryptionID []byte, shares map[byte][]byte) error {
	coordinates := make([]byte, 0, len(shares))
	for x := range shares {
		coordinates = append(coordinates, x)
	}
	sort.Slice(coordinates, func(i, j int) bool { return coordinates[i] < coordinates[j] })

	next := 0
	idHex := fmt.Sprintf("%x", encryptionID)
	for _, server := range c.servers {
		assigned := make(map[byte][]byte, server.Weight)
		for i := 0; i < server.Weight; i++ {
			x := coordinates[next]
			assigned[x] = shares[x]
			next++
		}

		body, err := codec.Marshal(&ShareRegistration{
			EncryptionID: encryptionID,
			PackageID:    c.packageID,
			Threshold:    c.threshold,
			TotalWeight:  c.totalWeight,
			Shares:       assigned,
		})
		if err != nil {
			return fmt.Errorf("seal: encoding registration for %s: %w", server.ID, err)
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodPut,
			server.URL+"/v1/shares/"+idHex, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("seal: building registration for %s: %w", server.ID, err)
		}
		request.Header.Set("Content-Type", "application/cbor")

		response, err := c.httpClient.Do(request)
		if err != nil {
			return fmt.Errorf("%w: registering with %s: %v", ErrEncryptionService, server.ID, err)
		}
		response.Body.Close()
		if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
			return fmt.Errorf("%w: %s returned %s to registration", ErrEncryptionService, server.ID, response.Status)
		}
	}
	return nil
}

// Decrypt opens an envelope. The ID is read from the ciphertext
// header, the credential's expiry is checked before any network
// traffic, and every server is asked to release its shares against
// the approval descriptor. Denials, share shortfalls, and corrupt
// ciphertext map to the package sentinels; on every failure path no
// plaintext or key material survives the call.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte, credential *session.Credential, approval *policy.Descriptor) ([]byte, error) {
	envelope, err := ParseEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	if credential == nil {
		return nil, fmt.Errorf("seal: session credential is required")
	}
	if approval == nil {
		return nil, fmt.Errorf("seal: approval descriptor is required")
	}
	if !bytes.Equal(approval.EncryptionID, envelope.EncryptionID) {
		return nil, fmt.Errorf("seal: approval descriptor is for a different envelope")
	}

	// Expiry is checked before contacting anything: an expired
	// session gets a clean restart, not a volley of doomed fetches.
	if credential.Expired(c.clock.Now()) {
		return nil, fmt.Errorf("seal: %w (expired at %s)", session.ErrExpired,
			credential.ExpiresAt().UTC().Format("2006-01-02T15:04:05Z"))
	}

	descriptorBytes, err := approval.Bytes()
	if err != nil {
		return nil, err
	}
	body, err := codec.Marshal(&FetchRequest{
		Descriptor: descriptorBytes,
		Credential: *credential,
		Signature:  credential.SignRequest(descriptorBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("seal: encoding fetch request: %w", err)
	}

	collected, fetchErrs, err := c.fetchShares(ctx, envelope.EncryptionIDHex(), body)
	if err != nil {
		return nil, err
	}
	if len(collected) < envelope.Threshold {
		detail := ""
		if len(fetchErrs) > 0 {
			detail = ": " + strings.Join(fetchErrs, "; ")
		}
		return nil, fmt.Errorf("%w: weight %d of %d required%s",
			ErrInsufficientShares, len(collected), envelope.Threshold, detail)
	}

	dek, err := shamir.Combine(collected)
	if err != nil {
		return nil, fmt.Errorf("seal: combining key shares: %w", err)
	}
	defer secret.Zero(dek)

	key, err := derivePayloadKey(dek, envelope.EncryptionID)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("seal: constructing AEAD: %w", err)
	}

	sealed := envelope.Ciphertext[envelope.headerEnd:]
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: truncated payload", ErrParse)
	}
	aeadNonce := sealed[:chacha20poly1305.NonceSizeX]
	aad := envelope.Ciphertext[:envelope.headerEnd]

	plaintext, err := aead.Open(nil, aeadNonce, sealed[chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: payload authentication failed", ErrParse)
	}
	return plaintext, nil
}

// fetchShares asks every server for its shares. Returns the merged
// share map and transport-level failure descriptions; the error is
// non-nil only for a policy denial, which sinks the whole attempt.
func (c *Client) fetchShares(ctx context.Context, idHex string, body []byte) (map[byte][]byte, []string, error) {
	collected := make(map[byte][]byte)
	var fetchErrs []string

	for _, server := range c.servers {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost,
			server.URL+"/v1/shares/"+idHex+"/fetch", bytes.NewReader(body))
		if err != nil {
			fetchErrs = append(fetchErrs, fmt.Sprintf("%s: %v", server.ID, err))
			continue
		}
		request.Header.Set("Content-Type", "application/cbor")

		response, err := c.httpClient.Do(request)
		if err != nil {
			fetchErrs = append(fetchErrs, fmt.Sprintf("%s: %v", server.ID, err))
			continue
		}

		switch response.StatusCode {
		case http.StatusOK:
			var fetched FetchResponse
			err := codec.NewDecoder(response.Body).Decode(&fetched)
			response.Body.Close()
			if err != nil {
				fetchErrs = append(fetchErrs, fmt.Sprintf("%s: decoding response: %v", server.ID, err))
				continue
			}
			for x, share := range fetched.Shares {
				collected[x] = share
			}

		case http.StatusForbidden:
			// One denial sinks the attempt. The committee evaluates
			// the same descriptor against the same ledger, so a
			// denial is a policy verdict, not a server quirk.
			response.Body.Close()
			return nil, nil, fmt.Errorf("%w: server %s", ErrAccessDenied, server.ID)

		default:
			response.Body.Close()
			fetchErrs = append(fetchErrs, fmt.Sprintf("%s: %s", server.ID, response.Status))
		}
	}
	return collected, fetchErrs, nil
}
