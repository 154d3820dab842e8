// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// bundlePrefix marks a recovery bundle string. It keeps bundles
// self-identifying in exports that mix several base64 fields.
const bundlePrefix = "attenda-recovery-v1:"

func encodeBundle(raw []byte) string {
	return bundlePrefix + base64.StdEncoding.EncodeToString(raw)
}

func decodeBundle(bundle string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(bundle, bundlePrefix)
	if !ok {
		return nil, fmt.Errorf("escrow: not a recovery bundle (missing %q prefix)", bundlePrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("escrow: decoding bundle: %w", err)
	}
	return raw, nil
}
