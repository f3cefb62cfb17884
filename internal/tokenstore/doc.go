// Package tokenstore provides persistence slots for the session token.
//
// A store holds at most one token. Absence is reported as ErrNotFound so callers
// can treat "no token" as unauthenticated rather than as a failure.
//
// Backends differ in where the token lives:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Env: Read-only environment variable access (requires external secret management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Memory: In-process slot, mostly for tests and embedding
//   - Cookie: Per-request slot backed by the session cookie of an HTTP exchange
//
// No backend tracks expiry. A stale token is discovered only when the backend
// API rejects it.
package tokenstore
