// Package entity owns managed entities and their lifecycle state machine.
//
// Each entity carries an immutable identity (customer, producer, resource
// slot, monetary value) and a mutable lifecycle state drawn from a fixed
// table of ten states. The table is data-driven: every state declares its
// own set of legal successors plus display metadata, and terminal states
// declare none. Draft is the only legal initial state.
//
// All mutations flow through the Machine, which serializes writes and
// appends a StateTransitioned audit entry atomically with each in-memory
// change. Reads return copies, so a consistent snapshot is always observed.
package entity
