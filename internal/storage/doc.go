// Package storage provides key-value storage for salesdesk client state.
//
// The session store persists the bearer token and user identity through
// the KV interface. Implementations:
//
//   - MemoryKV: process-local map, used for --ephemeral runs and tests
//   - BadgerEngine: embedded Badger v3 database under ~/.salesdesk/session
//   - SealedKV: wrapper encrypting values at rest (XChaCha20-Poly1305,
//     key derived with Argon2id)
package storage
