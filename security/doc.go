// Package security provides the stateless cryptographic primitives used by
// the authcore engine: PBKDF2 password hashing with constant-time
// verification, AES-GCM authenticated encryption for sensitive profile
// fields, password strength validation, and secure random token generation.
//
// # Architecture boundaries
//
// Nothing in this package touches Redis or any other store. All types are
// safe for concurrent use after construction. Hashing is deliberately slow
// (one key derivation per call, roughly tens of milliseconds). That cost
// sits on the critical path of every login and must not be tuned down
// without weakening brute-force resistance.
package security
