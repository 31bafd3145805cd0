// Package source loads policy definitions from YAML files on disk and
// watches them for changes.
//
// A definitions file holds a list of policy definitions:
//
//	policies:
//	  - name: cancel-on-repeated-no-show
//	    trigger_pattern: attendance.no_show
//	    action: "transition:cancelled"
//	    expected_outcome_sign: negative
//
// The watcher only feeds new definitions into the live registry; runtime
// policy state (mode, counters) is never touched by a reload.
package source
