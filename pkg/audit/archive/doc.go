// Package archive provides scheduled export of audit log entries to
// line-delimited JSON files for external persistence and backup.
//
// The archiver tracks the last archived sequence number and, on each run,
// exports only the entries appended since. Nothing is ever pruned from the
// log itself: archiving preserves the append-only invariant and produces
// files that `ganymede replay` can consume.
//
// Runs are driven by a cron schedule (e.g. "0 3 * * *" for daily at 3 AM)
// via the Scheduler, or invoked directly through Archiver.Run.
package archive
