package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"governor-hq/ganymede/pkg/audit"
)

// JSONExporter exports audit entries to JSON format.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes entries to the provided writer as a JSON array.
func (e *JSONExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	if len(entries) == 0 {
		_, err := w.Write([]byte("[]"))
		return err
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return fmt.Errorf("json export: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("json export: %w", err)
	}
	return nil
}

// ExportLines writes entries from a channel as line-delimited JSON (JSONL),
// one entry per line. This is memory-efficient for full-log exports and is
// the format consumed by `ganymede replay`.
func (e *JSONExporter) ExportLines(ctx context.Context, entries <-chan *audit.Entry, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	count := 0

	for entry := range entries {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		if err := enc.Encode(entry); err != nil {
			return count, fmt.Errorf("jsonl export at entry %d: %w", count, err)
		}
		count++
	}
	return count, nil
}

// ReadLines decodes line-delimited JSON entries from r, invoking apply for
// each in order. It is the inverse of ExportLines.
func ReadLines(ctx context.Context, r io.Reader, apply func(audit.Entry) error) (int, error) {
	dec := json.NewDecoder(r)
	count := 0

	for dec.More() {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		var entry audit.Entry
		if err := dec.Decode(&entry); err != nil {
			return count, fmt.Errorf("jsonl read at entry %d: %w", count, err)
		}
		if err := apply(entry); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
