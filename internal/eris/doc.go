// Package eris encodes content into convergently encrypted, content-addressed
// blocks and decodes it back from a read capability.
//
// Encoding splits the content into fixed-size leaf blocks (the last one padded
// with 0x80 and zeros), encrypts every block with a key derived from its own
// plaintext and a convergence secret, and stores the ciphertext under its hash.
// The (reference, key) pairs of one level are packed into node blocks one level
// up until a single pair remains; that pair, the level and the block size form
// the ReadCapability.
//
// Decoding walks the tree from the capability, verifies that every fetched
// block hashes to its reference, decrypts it, and concatenates the leaves.
//
//	capability, err := eris.EncodeBytes(ctx, content, store, eris.DefaultOptions())
//	...
//	content, err := eris.Decode(ctx, capability, store, eris.DecodeOptions{})
package eris
