// Package session provides session persistence and lifecycle logic for
// authcore: a Redis-backed Store over the user_sessions schema, a pure
// Validator holding the decision rules (expiry, origin and agent
// consistency, risk scoring, per-user limits), and a Manager composing
// the two into create/validate/extend/invalidate/sweep operations.
//
// # Architecture boundaries
//
// The Store owns every Redis round trip; the Validator performs no I/O at
// all. Session mutation is per-row: creation and invalidation run as
// single atomic Redis operations, activity bumps are last-writer-wins.
package session
