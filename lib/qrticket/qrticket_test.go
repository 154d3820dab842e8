// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package qrticket

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/attenda-foundation/attenda/lib/ref"
)

var testHolder = ref.MustParseAddress("0x" + strings.Repeat("ab", 32))

func validPayload() *Payload {
	return &Payload{
		TicketID:         "T1",
		EventID:          "E1",
		Holder:           testHolder,
		Timestamp:        1700000000000,
		VerificationCode: "AB12CD34",
	}
}

func TestEncodeDecodeIdempotent(t *testing.T) {
	original := validPayload()
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if *decoded != *original {
		t.Errorf("round trip: got %+v, want %+v", decoded, original)
	}

	// Re-encoding the decoded payload must reproduce the bytes.
	reencoded, err := Encode(decoded)
	if err != nil {
		t.Fatalf("re-Encode error: %v", err)
	}
	if string(reencoded) != string(encoded) {
		t.Errorf("re-encode differs:\n got %s\nwant %s", reencoded, encoded)
	}
}

func TestEncodeFieldNamesAreFixed(t *testing.T) {
	// External scanners parse these exact keys. Renaming a field is
	// a breaking wire change, not a refactor.
	encoded, err := Encode(validPayload())
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	for _, key := range []string{`"ticketId"`, `"eventId"`, `"holder"`, `"timestamp"`, `"verificationCode"`} {
		if !strings.Contains(string(encoded), key) {
			t.Errorf("encoded payload missing key %s: %s", key, encoded)
		}
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Payload)
	}{
		{"missing ticket", func(p *Payload) { p.TicketID = "" }},
		{"missing event", func(p *Payload) { p.EventID = "" }},
		{"zero holder", func(p *Payload) { p.Holder = ref.Address{} }},
		{"zero timestamp", func(p *Payload) { p.Timestamp = 0 }},
		{"negative timestamp", func(p *Payload) { p.Timestamp = -1 }},
		{"bad code", func(p *Payload) { p.VerificationCode = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(p)
			if _, err := Encode(p); !errors.Is(err, ErrEncoding) {
				t.Errorf("Encode error = %v, want ErrEncoding", err)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); !errors.Is(err, ErrEncoding) {
		t.Errorf("Decode error = %v, want ErrEncoding", err)
	}
}

func TestDataURL(t *testing.T) {
	url, err := DataURL(validPayload())
	if err != nil {
		t.Fatalf("DataURL error: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("DataURL = %.40q..., want %q prefix", url, prefix)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("data URL body is not base64: %v", err)
	}
	// PNG magic bytes.
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("data URL body is not a PNG image")
	}
}

func TestVerify(t *testing.T) {
	encoded, err := Encode(validPayload())
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !Verify(encoded, "T1") {
		t.Error("Verify rejected matching ticket")
	}
	if Verify(encoded, "T2") {
		t.Error("Verify accepted wrong ticket ID")
	}
	if Verify([]byte("garbage"), "T1") {
		t.Error("Verify accepted garbage content")
	}
}
