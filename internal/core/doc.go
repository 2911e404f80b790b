// Package core implements the eris vault: a single bbolt file holding the
// encrypted blocks of every stored file and an index mapping names to read
// capabilities.
//
// Core operations include:
//   - Init: create a public vault, or a private one whose convergence secret
//     is derived from a passphrase
//   - Put/PutReader: encode files or streams into the vault
//   - Get/Open/Extract: decode entries back into writers or files
//   - Status/Diff/Verify: compare entries with local files and check blocks
//   - Export/Import: move the blocks of one capability through a badger bundle
//
// Public vaults use the null convergence secret, so identical files encode
// to identical capabilities in every public vault.
package core
