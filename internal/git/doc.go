// Package git checks how a vault and its extracted files sit in a git work tree.
//
// The vault file holds only ciphertext and is meant to be committed. Files
// extracted from it are plaintext and should be neither tracked nor left
// out of .gitignore.
package git
