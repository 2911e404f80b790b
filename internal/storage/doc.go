// Package storage provides the content-addressed block stores.
//
// Every store implements Store: Get and Put keyed by the 32-byte reference
// (BLAKE2b-256 of the ciphertext). Stores never verify that a reference
// matches its block; the decoder does that on every fetch.
//
// Implementations:
//   - Discard: drops every block, counts what would have been written
//   - Memory: map-backed, for tests and short-lived pipelines
//   - Bolt: the vault file, see below
//   - Badger: a directory used as a portable block bundle
//
// The Bolt vault uses three buckets:
//   - config: block size, vault mode, KDF parameters, timestamps
//   - index: named entries (name, size, capability URN), JSON encoded
//   - blocks: reference -> ciphertext
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
