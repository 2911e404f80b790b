package core

import (
	"bytes"
	"fmt"
	"os"

	"github.com/illarion/eris/internal/crypto"
	"golang.org/x/term"
)

// EnvPassphrase names the variable holding the passphrase of a private vault
const EnvPassphrase = "ERIS_PASSPHRASE"

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ReadPassphrase prompts on stderr and reads a passphrase from the terminal without echo
func ReadPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// ReadPassphraseConfirm reads a passphrase twice and ensures both match
func ReadPassphraseConfirm() ([]byte, error) {
	first, err := ReadPassphrase("Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	second, err := ReadPassphrase("Confirm passphrase: ")
	if err != nil {
		crypto.ClearBytes(first)
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		crypto.ClearBytes(first)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

// PassphraseFromEnv returns a copy of ERIS_PASSPHRASE, or nil when unset
func PassphraseFromEnv() []byte {
	p := os.Getenv(EnvPassphrase)
	if p == "" {
		return nil
	}
	return bytes.Clone([]byte(p))
}
