// Package export provides exporters for sequential audit log export.
//
// Two formats are supported:
//
//   - JSON: a JSON array of entries, optionally pretty-printed, plus a
//     line-delimited (JSONL) streaming variant used by the archiver
//   - CSV: one row per entry with the payload serialized into a JSON column
//
// Exports are read-only over a sequence range; the log itself is never
// modified by an export.
package export
