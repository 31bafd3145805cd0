// Package blast computes the side-effect-free impact of a proposed entity
// state transition across all managed entities.
//
// A preview identifies the affected set (the target entity plus every entity
// sharing its producer or resource slot), sums its monetary value, counts
// distinct customers, and bands the result into a risk level against
// configured thresholds. Previews are pure reads: calling Preview twice with
// no intervening writes yields identical reports, and a preview never judges
// whether the proposed transition is legal.
package blast
