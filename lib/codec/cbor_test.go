// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/attenda-foundation/attenda/lib/ref"
)

// shareRequest is a representative internal message using cbor struct
// tags (the convention for purely-internal types).
type shareRequest struct {
	ID        string `cbor:"id"`
	Index     int    `cbor:"index"`
	Requester string `cbor:"requester,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := shareRequest{
		ID:        "0xab12",
		Index:     3,
		Requester: "0xcd34",
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded shareRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	message := map[string]any{
		"threshold": 2,
		"servers":   []string{"a", "b"},
		"package":   "0x01",
	}

	first, err := Marshal(message)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(message)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("deterministic encoding produced different bytes for same value")
	}
}

func TestRefTypesEncodeAsTextStrings(t *testing.T) {
	// ref types have unexported fields; without the TextMarshaler
	// configuration they would encode as empty maps and silently lose
	// their identity.
	type object struct {
		Policy ref.ObjectID `cbor:"policy"`
	}
	id := ref.MustParseObjectID("0x" + "11" + "00000000000000000000000000000000000000000000000000000000000000")
	data, err := Marshal(object{Policy: id})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded object
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Policy != id {
		t.Errorf("object ID did not survive CBOR: got %v, want %v", decoded.Policy, id)
	}

	// The canonical text form must appear in the encoding.
	if !bytes.Contains(data, []byte(id.String())) {
		t.Errorf("encoding %x does not contain text form %q", data, id.String())
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	type v1 struct {
		ID    string `cbor:"id"`
		Extra string `cbor:"extra"`
	}
	type v0 struct {
		ID string `cbor:"id"`
	}
	data, err := Marshal(v1{ID: "x", Extra: "future field"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded v0
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if decoded.ID != "x" {
		t.Errorf("ID = %q, want %q", decoded.ID, "x")
	}
}
