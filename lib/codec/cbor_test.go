// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type sampleRecord struct {
	Episode int       `cbor:"episode"`
	Outcome string    `cbor:"outcome,omitempty"`
	Reward  float64   `cbor:"reward"`
	Ended   time.Time `cbor:"ended"`
	RunID   string    `cbor:"run_id"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Episode: 12,
		Outcome: "goal",
		Reward:  7.3,
		Ended:   time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		RunID:   "6f1c1f1e-8a9b-4c3d-9e2f-0a1b2c3d4e5f",
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Ended.Equal(original.Ended) {
		t.Errorf("time roundtrip: got %v, want %v", decoded.Ended, original.Ended)
	}
	decoded.Ended = original.Ended
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"b": 1, "a": 2, "c": []int{3}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestEncoderDecoderSequence(t *testing.T) {
	records := []sampleRecord{
		{Episode: 0, Outcome: "collision", Reward: -5.3},
		{Episode: 1, Outcome: "step_limit", Reward: -50},
		{Episode: 2, Reward: 9.1},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got sampleRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got.Episode != want.Episode || got.Outcome != want.Outcome || got.Reward != want.Reward {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record sampleRecord
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}
