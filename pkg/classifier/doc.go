// Package classifier assigns each incoming occurrence a type, a severity
// tier, and an outcome sign. It is a pure leaf: classification reads its
// configured tier table and the event payload, and mutates nothing.
package classifier
