// Package policy owns policy definitions, their promotion mode, and their
// accuracy statistics.
//
// # Promotion
//
// Policies are born in shadow mode with zero counters. Observe is the sole
// mutator of confidence; after every observation the registry evaluates the
// automatic promotion thresholds:
//
//	shadow    -> candidate  observations >= N_candidate and confidence >= T_candidate
//	candidate -> promoted   observations >= N_promoted  and confidence >= T_promoted
//
// Promotion is monotonic forward-only. There is no automatic demotion: a
// promoted policy that degrades stays promoted until a human kills it. Kill
// is terminal and absorbing from any mode. ForcePromote advances exactly one
// step regardless of thresholds and is audit-logged as a manual override.
//
// # Matching
//
// Trigger matching is an explicit Matcher capability. The default matcher is
// exact string equality; a trailing "*" in the trigger pattern selects prefix
// matching. Multiple policies may match one event and are processed
// independently; there is no single-winner resolution.
package policy
