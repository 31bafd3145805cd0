package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"governor-hq/ganymede/pkg/audit"
)

// CSVExporter exports audit entries to CSV format. Fixed columns carry the
// sequence, timestamp, kind, and subject; the full payload is serialized
// into a JSON column so no information is lost.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// csvHeader is the fixed column set.
var csvHeader = []string{"sequence", "timestamp", "kind", "subject", "detail", "payload"}

// Export writes entries to the provided writer in CSV format.
func (e *CSVExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv export: write header: %w", err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := entryRow(entry)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv export: write entry %d: %w", entry.Sequence, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// entryRow flattens one entry into a CSV row.
func entryRow(entry *audit.Entry) ([]string, error) {
	subject := ""
	detail := ""

	switch entry.Kind {
	case audit.KindEventEmitted:
		if entry.Event != nil {
			subject = entry.Event.EntityID
			detail = entry.Event.Type
		}
	case audit.KindStateTransitioned:
		if entry.Transition != nil {
			subject = entry.Transition.EntityID
			detail = entry.Transition.From + "->" + entry.Transition.To
		}
	case audit.KindPolicyModeChanged:
		if entry.ModeChange != nil {
			subject = entry.ModeChange.PolicyID
			detail = entry.ModeChange.From + "->" + entry.ModeChange.To
		}
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("csv export: marshal entry %d: %w", entry.Sequence, err)
	}

	return []string{
		strconv.FormatUint(entry.Sequence, 10),
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.Kind),
		subject,
		detail,
		string(payload),
	}, nil
}
