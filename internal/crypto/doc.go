// Package crypto provides the cryptographic primitives of the block encoding.
//
// Every block is handled the same way:
//   - key = BLAKE2b-256(plaintext) keyed with a 32-byte convergence secret
//   - ciphertext = ChaCha20(plaintext, key, all-zero 12-byte nonce)
//   - reference = BLAKE2b-256(ciphertext), the block's store address
//
// The all-zero convergence secret makes identical blocks converge to the same
// ciphertext for everyone. A random or passphrase-derived secret (PBKDF2-HMAC-SHA256,
// 210,000 iterations) keeps encodings unlinkable to anyone without the secret.
//
// Memory safety:
//   - Use ClearBytes() to zero secrets and passphrases after use
package crypto
