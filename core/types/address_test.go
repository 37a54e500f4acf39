package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	var addr Address
	copy(addr[:], bytes.Repeat([]byte{0x42}, AddressLength))

	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	decoded, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if decoded != addr {
		t.Fatalf("bech32 round trip mismatch")
	}
	fromHex, err := ParseAddress("0x" + addr.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if fromHex != addr {
		t.Fatalf("hex round trip mismatch")
	}
}

func TestParseAddressRejectsWrongLength(t *testing.T) {
	if _, err := ParseAddress("abcd"); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := ParseAddress(""); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestAddressJSON(t *testing.T) {
	var addr Address
	addr[0] = 7
	payload, err := json.Marshal(map[string]Address{"a": addr})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]Address
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["a"] != addr {
		t.Fatalf("json round trip mismatch")
	}
}
