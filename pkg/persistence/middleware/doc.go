// Package middleware provides decorators for ports.SessionStore.
//
// Encryption seals both the state snapshot and the serialized history with
// AES-256-GCM before they reach the underlying adapter, so a file or Redis
// store only ever holds opaque envelopes. Older keys can be listed as
// fallbacks to rotate keys without downtime.
package middleware
