// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/palaver-foundation/palaver/lib/ref"
)

func testTicket(t *testing.T, records int) Ticket {
	t.Helper()
	topic, err := ref.NewTopicID()
	if err != nil {
		t.Fatalf("NewTopicID: %v", err)
	}

	tk := Ticket{Topic: topic}
	for i := 0; i < records; i++ {
		peer, err := ref.NewPeerID()
		if err != nil {
			t.Fatalf("NewPeerID: %v", err)
		}
		tk.Bootstrap = append(tk.Bootstrap, PeerAddr{
			Peer:      peer,
			Addresses: []string{"192.168.1.10:7431", "[::1]:7431"},
		})
	}
	return tk
}

func TestRoundTrip(t *testing.T) {
	for _, records := range []int{0, 1, 3} {
		original := testTicket(t, records)

		encoded, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode (%d records): %v", records, err)
		}

		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode (%d records): %v", records, err)
		}
		if !reflect.DeepEqual(original, decoded) {
			t.Fatalf("round trip mismatch (%d records):\n%+v\n%+v", records, original, decoded)
		}
	}
}

func TestEncodeIsLowercase(t *testing.T) {
	encoded, err := Encode(testTicket(t, 1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded != strings.ToLower(encoded) {
		t.Fatalf("encoded ticket contains uppercase: %q", encoded)
	}
	if strings.Contains(encoded, "=") {
		t.Fatalf("encoded ticket contains padding: %q", encoded)
	}
}

func TestDecodeAcceptsEitherCase(t *testing.T) {
	original := testTicket(t, 2)
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	upper, err := Decode(strings.ToUpper(encoded))
	if err != nil {
		t.Fatalf("Decode(upper): %v", err)
	}
	if !reflect.DeepEqual(original, upper) {
		t.Fatal("uppercase decode mismatch")
	}
}

func TestDecodeTrimsWhitespace(t *testing.T) {
	encoded, err := Encode(testTicket(t, 1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode("  " + encoded + "\n"); err != nil {
		t.Fatalf("Decode with surrounding whitespace: %v", err)
	}
}

func TestDecodeRejectsInvalidAlphabet(t *testing.T) {
	_, err := Decode("not!a!ticket")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode returned %v, want *DecodeError", err)
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	encoded, err := Encode(testTicket(t, 2))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Every proper prefix must fail: a truncated ticket never yields a
	// partial result. Prefixes are re-encoded from truncated binary so
	// the base32 layer itself stays valid.
	full, err := textEncoding.DecodeString(strings.ToUpper(encoded))
	if err != nil {
		t.Fatalf("decoding test fixture: %v", err)
	}
	for cut := 1; cut < len(full); cut++ {
		truncated := strings.ToLower(textEncoding.EncodeToString(full[:cut]))
		if _, err := Decode(truncated); err == nil {
			t.Fatalf("Decode accepted ticket truncated to %d of %d bytes", cut, len(full))
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	encoded, err := Encode(testTicket(t, 1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	full, err := textEncoding.DecodeString(strings.ToUpper(encoded))
	if err != nil {
		t.Fatalf("decoding test fixture: %v", err)
	}

	padded := strings.ToLower(textEncoding.EncodeToString(append(full, 0x00)))
	_, err = Decode(padded)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode(trailing byte) returned %v, want *DecodeError", err)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	encoded, err := Encode(testTicket(t, 1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	full, err := textEncoding.DecodeString(strings.ToUpper(encoded))
	if err != nil {
		t.Fatalf("decoding test fixture: %v", err)
	}

	full[0] = 0x7f
	_, err = Decode(strings.ToLower(textEncoding.EncodeToString(full)))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode(bad version) returned %v, want *DecodeError", err)
	}
	if !strings.Contains(decodeErr.Reason, "version") {
		t.Fatalf("Reason = %q, want mention of version", decodeErr.Reason)
	}
}

func TestEncodeRejectsZeroTopic(t *testing.T) {
	if _, err := Encode(Ticket{}); err == nil {
		t.Fatal("Encode accepted a zero topic")
	}
}

func TestDecodeRejectsZeroTopic(t *testing.T) {
	// A structurally valid buffer whose topic bytes are all zero.
	data := make([]byte, 1+ref.TopicIDSize+1)
	data[0] = layoutVersion

	_, err := Decode(strings.ToLower(textEncoding.EncodeToString(data)))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode(zero topic) returned %v, want *DecodeError", err)
	}
}

func TestDecodeRejectsRecordCountBeyondData(t *testing.T) {
	// A ticket claiming one record but carrying no record bytes.
	tk := testTicket(t, 0)
	data, err := appendBinary(nil, tk)
	if err != nil {
		t.Fatalf("appendBinary: %v", err)
	}
	data[len(data)-1] = 1 // Record count byte.

	_, err = Decode(strings.ToLower(textEncoding.EncodeToString(data)))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode returned %v, want *DecodeError", err)
	}
}
