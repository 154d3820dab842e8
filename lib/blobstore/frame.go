// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Stored blobs carry a small self-describing frame so Get can reverse
// whatever Put did:
//
//	byte  0      compression tag
//	bytes 1..4   big-endian uint32, original payload length
//	bytes 5..    payload (raw or lz4 block)
//
// These values are stored-format constants. Changing them orphans
// every blob already in the store.
type compressionTag uint8

const (
	// compressionNone — payload stored as-is. Used when lz4 does
	// not shrink the data, which is the common case for ciphertext
	// and PNG bytes.
	compressionNone compressionTag = 0

	// compressionLZ4 — payload is an LZ4 block.
	compressionLZ4 compressionTag = 1
)

const frameHeaderSize = 5

// maxExpansionRatio caps the original size an LZ4 frame header may
// claim relative to its compressed payload. The LZ4 block format
// cannot expand more than 255 output bytes per input byte, so any
// header beyond that is corrupt; the check runs before the output
// buffer is allocated, keeping a hostile header from forcing a
// multi-gigabyte allocation.
const maxExpansionRatio = 255

// frame wraps data for storage, compressing when it helps.
func frame(data []byte) []byte {
	tag := compressionNone
	payload := data

	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	// CompressBlock returns 0 for incompressible input. A compressed
	// payload that is not actually smaller is stored raw too.
	if err == nil && written > 0 && written < len(data) {
		tag = compressionLZ4
		payload = destination[:written]
	}

	framed := make([]byte, frameHeaderSize+len(payload))
	framed[0] = byte(tag)
	binary.BigEndian.PutUint32(framed[1:frameHeaderSize], uint32(len(data)))
	copy(framed[frameHeaderSize:], payload)
	return framed
}

// unframe reverses frame, returning the original payload bytes.
func unframe(framed []byte) ([]byte, error) {
	if len(framed) < frameHeaderSize {
		return nil, fmt.Errorf("truncated blob frame: %d bytes", len(framed))
	}
	tag := compressionTag(framed[0])
	originalSize := int(binary.BigEndian.Uint32(framed[1:frameHeaderSize]))
	payload := framed[frameHeaderSize:]

	switch tag {
	case compressionNone:
		if len(payload) != originalSize {
			return nil, fmt.Errorf("uncompressed blob: size %d does not match header %d", len(payload), originalSize)
		}
		return payload, nil

	case compressionLZ4:
		if originalSize == 0 || originalSize > len(payload)*maxExpansionRatio {
			return nil, fmt.Errorf("lz4 blob: header claims %d bytes from %d compressed", originalSize, len(payload))
		}
		destination := make([]byte, originalSize)
		read, err := lz4.UncompressBlock(payload, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != originalSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, header says %d", read, originalSize)
		}
		return destination, nil

	default:
		return nil, fmt.Errorf("unknown blob compression tag %d", tag)
	}
}
