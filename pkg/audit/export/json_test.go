package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"governor-hq/ganymede/pkg/audit"
)

func sampleEntries() []*audit.Entry {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return []*audit.Entry{
		{
			Sequence: 1, Timestamp: ts, Kind: audit.KindStateTransitioned,
			Transition: &audit.TransitionRecord{EntityID: "e-1", To: "draft", CustomerRef: "customer-7"},
		},
		{
			Sequence: 2, Timestamp: ts.Add(time.Second), Kind: audit.KindEventEmitted,
			Event: &audit.EventRecord{EventID: "ev-1", Type: "deal.lost", Outcome: "negative", EntityID: "e-1"},
		},
		{
			Sequence: 3, Timestamp: ts.Add(2 * time.Second), Kind: audit.KindPolicyModeChanged,
			ModeChange: &audit.ModeChangeRecord{PolicyID: "p-1", From: "shadow", To: "candidate", Automatic: true},
		},
	}
}

// TestJSONExporter_Export tests array export, including the empty case.
func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var decoded []audit.Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded %d entries, want 3", len(decoded))
	}
	if decoded[0].Transition == nil || decoded[0].Transition.CustomerRef != "customer-7" {
		t.Errorf("transition payload lost: %+v", decoded[0])
	}

	buf.Reset()
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export(empty) failed: %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

// TestJSONExporter_Lines tests the JSONL round trip through ExportLines and
// ReadLines.
func TestJSONExporter_Lines(t *testing.T) {
	ctx := context.Background()
	entries := sampleEntries()

	ch := make(chan *audit.Entry, len(entries))
	for _, e := range entries {
		ch <- e
	}
	close(ch)

	var buf bytes.Buffer
	count, err := NewJSONExporter(false).ExportLines(ctx, ch, &buf)
	if err != nil {
		t.Fatalf("ExportLines() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("ExportLines() wrote %d entries, want 3", count)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Errorf("output has %d lines, want 3", lines)
	}

	var replayed []audit.Entry
	count, err = ReadLines(ctx, &buf, func(e audit.Entry) error {
		replayed = append(replayed, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadLines() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("ReadLines() read %d entries, want 3", count)
	}
	for i, e := range replayed {
		if e.Sequence != entries[i].Sequence || e.Kind != entries[i].Kind {
			t.Errorf("entry %d = {%d %s}, want {%d %s}", i, e.Sequence, e.Kind, entries[i].Sequence, entries[i].Kind)
		}
	}
	if replayed[1].Event == nil || replayed[1].Event.Outcome != "negative" {
		t.Errorf("event payload lost: %+v", replayed[1])
	}
}

// TestReadLines_Malformed tests that decode failures report the entry index.
func TestReadLines_Malformed(t *testing.T) {
	input := `{"sequence":1,"kind":"event_emitted","event":{"event_id":"ev"}}
{broken`

	count, err := ReadLines(context.Background(), strings.NewReader(input), func(audit.Entry) error { return nil })
	if err == nil {
		t.Fatal("expected decode error")
	}
	if count != 1 {
		t.Errorf("applied %d entries before failure, want 1", count)
	}
}

// TestReadLines_ApplyError tests that apply errors stop the read.
func TestReadLines_ApplyError(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range sampleEntries() {
		if err := enc.Encode(e); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
	}

	applied := 0
	_, err := ReadLines(context.Background(), &buf, func(audit.Entry) error {
		applied++
		if applied == 2 {
			return context.Canceled
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected apply error")
	}
	if applied != 2 {
		t.Errorf("applied %d entries, want 2", applied)
	}
}
