// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// BlobID is a content address assigned by the blob store. The store
// owns the format; this core treats it as opaque. Validation only
// rejects values that could not possibly be store-assigned: empty
// strings and strings containing characters that are unsafe in a URL
// path segment (the ID is interpolated into GET request paths).
//
// BlobID is an immutable value type. The zero value is not valid; use
// IsZero to check.
type BlobID struct {
	id string
}

// ParseBlobID validates and wraps a raw blob ID string.
func ParseBlobID(raw string) (BlobID, error) {
	if raw == "" {
		return BlobID{}, fmt.Errorf("empty blob ID")
	}
	for _, r := range raw {
		if !blobIDRune(r) {
			return BlobID{}, fmt.Errorf("blob ID contains invalid character %q: %q", r, raw)
		}
	}
	return BlobID{id: raw}, nil
}

// MustParseBlobID is like ParseBlobID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseBlobID(raw string) BlobID {
	b, err := ParseBlobID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseBlobID(%q): %v", raw, err))
	}
	return b
}

// blobIDRune reports whether r is allowed in a blob ID: the URL-safe
// base64 alphabet plus the characters observed in store-assigned IDs.
func blobIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '=' || r == '.':
		return true
	}
	return false
}

// String returns the blob ID string exactly as the store assigned it.
func (b BlobID) String() string { return b.id }

// IsZero reports whether the BlobID is the zero value (uninitialized).
func (b BlobID) IsZero() bool { return b.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (b BlobID) MarshalText() ([]byte, error) {
	if b.id == "" {
		return nil, nil
	}
	return []byte(b.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset blob ID).
func (b *BlobID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*b = BlobID{}
		return nil
	}
	parsed, err := ParseBlobID(string(data))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
