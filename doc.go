// Package authcore is an embeddable authentication and authorization
// engine: PBKDF2 credential hashing, AES-GCM field encryption, Redis
// backed sessions with risk scoring, hierarchical role based access
// control with custom roles, and automatic account lockout.
//
// The engine is constructed once through the Builder and is safe for
// concurrent use. User records live behind the UserStore interface; a
// Redis reference implementation ships in the userstore sub-package.
package authcore
