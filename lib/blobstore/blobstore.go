// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore is the gateway to the external content-addressed
// blob store. It owns exactly two verbs — Put and Get — plus the
// transparent framing applied around stored bytes. Blob IDs are
// store-assigned and opaque; identical bytes may or may not collide
// to the same ID depending on store semantics.
//
// No retry or backoff lives here. The store's availability is its
// operator's problem and the transport's configuration; this gateway
// reports errors and gets out of the way.
package blobstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/attenda-foundation/attenda/lib/ref"
)

// ErrNotFound is returned by Get when the blob ID is unknown to the
// store or has been garbage-collected by its retention policy. Not
// retryable: the data is gone as far as this deployment can tell.
var ErrNotFound = errors.New("blobstore: blob not found")

// tagHeaderPrefix carries upload tags as HTTP headers. The store
// indexes them; this core only ever writes them.
const tagHeaderPrefix = "X-Attenda-Tag-"

// ChecksumTag is the tag key under which Put records the BLAKE3 hash
// of the original (unframed) bytes.
const ChecksumTag = "checksum"

// Tags is the metadata attached to an upload.
type Tags map[string]string

// Reference is the store's receipt for an upload.
type Reference struct {
	// BlobID is the content address. Losing it is equivalent to
	// losing the blob: nothing else in the system can recover the
	// bytes.
	BlobID ref.BlobID `json:"blobId"`

	// URL is the store's direct read URL, for display only.
	URL string `json:"url"`
}

// Config configures a gateway client.
type Config struct {
	// PublisherURL is the base URL for uploads.
	PublisherURL string

	// AggregatorURL is the base URL for reads. May equal
	// PublisherURL on single-node deployments.
	AggregatorURL string

	// HTTPClient is the transport. Defaults to http.DefaultClient;
	// production injects one with timeouts configured.
	HTTPClient *http.Client
}

// Client talks to the blob store over its HTTP boundary.
type Client struct {
	publisherURL  string
	aggregatorURL string
	httpClient    *http.Client
}

// New validates the configuration and returns a gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.PublisherURL == "" {
		return nil, fmt.Errorf("blobstore: publisher URL is required")
	}
	if cfg.AggregatorURL == "" {
		cfg.AggregatorURL = cfg.PublisherURL
	}
	for _, raw := range []string{cfg.PublisherURL, cfg.AggregatorURL} {
		if _, err := url.Parse(raw); err != nil {
			return nil, fmt.Errorf("blobstore: invalid base URL %q: %w", raw, err)
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		publisherURL:  strings.TrimSuffix(cfg.PublisherURL, "/"),
		aggregatorURL: strings.TrimSuffix(cfg.AggregatorURL, "/"),
		httpClient:    httpClient,
	}, nil
}

// Put uploads data with the given tags and returns the store's
// reference. The bytes are framed (and compressed when it helps)
// before upload; Get reverses the framing, so round trips are
// byte-identical. A BLAKE3 checksum of the original bytes is always
// added under ChecksumTag.
func (c *Client) Put(ctx context.Context, data []byte, tags Tags) (*Reference, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("blobstore: refusing to store an empty blob")
	}

	framed := frame(data)

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, c.publisherURL+"/v1/blobs", bytes.NewReader(framed))
	if err != nil {
		return nil, fmt.Errorf("blobstore: building upload request: %w", err)
	}
	request.Header.Set("Content-Type", "application/octet-stream")

	checksum := blake3.Sum256(data)
	request.Header.Set(tagHeaderPrefix+ChecksumTag, hex.EncodeToString(checksum[:]))
	for key, value := range tags {
		if key == "" {
			return nil, fmt.Errorf("blobstore: empty tag key")
		}
		request.Header.Set(tagHeaderPrefix+key, value)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("blobstore: upload: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("blobstore: upload failed: %s: %s", response.Status, strings.TrimSpace(string(body)))
	}

	var reference Reference
	if err := json.NewDecoder(response.Body).Decode(&reference); err != nil {
		return nil, fmt.Errorf("blobstore: parsing upload response: %w", err)
	}
	if reference.BlobID.IsZero() {
		return nil, fmt.Errorf("blobstore: store returned no blob ID")
	}
	return &reference, nil
}

// Get downloads a blob and removes the upload framing. Returns
// ErrNotFound when the store does not know the ID.
func (c *Client) Get(ctx context.Context, id ref.BlobID) ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("blobstore: blob ID is required")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.aggregatorURL+"/v1/blobs/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: building download request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("blobstore: download: %w", err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("blobstore: download failed: %s: %s", response.Status, strings.TrimSpace(string(body)))
	}

	framed, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("blobstore: reading blob body: %w", err)
	}

	data, err := unframe(framed)
	if err != nil {
		return nil, fmt.Errorf("blobstore: blob %s: %w", id, err)
	}
	return data, nil
}
