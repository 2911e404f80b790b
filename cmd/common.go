package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/illarion/eris/internal/core"
	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/keyring"
	"go.uber.org/zap"
)

const (
	EnvVault       = "ERIS_VAULT"       // vault file path, default ./.eris
	EnvConcurrency = "ERIS_CONCURRENCY" // bound on concurrent block operations
)

var logger = zap.NewNop()

// SetLogger sets the logger handed to every vault the commands open
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// OpenVault opens the vault of the current directory, honouring ERIS_VAULT
// and ERIS_CONCURRENCY. Exits on error.
func OpenVault() *core.Vault {
	var (
		v   *core.Vault
		err error
	)
	if p := os.Getenv(EnvVault); p != "" {
		v, err = core.NewAt(".", p)
	} else {
		v, err = core.New(".")
	}
	if err != nil {
		HandleError(err)
	}
	v.SetLogger(logger)

	if s := os.Getenv(EnvConcurrency); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid %s: %q\n", EnvConcurrency, s)
			os.Exit(1)
		}
		v.SetConcurrency(n)
	}
	return v
}

// PassphraseSource indicates where a passphrase was obtained from
type PassphraseSource int

const (
	SourceNone PassphraseSource = iota // public vault, no passphrase needed
	SourceEnv
	SourceKeyring
	SourcePrompt
)

// GetPassphrase returns the passphrase of a private vault, or nil for a public one.
// It tries ERIS_PASSPHRASE, then the keyring, then prompts. A keyring entry
// that no longer matches is removed before prompting.
// The caller is responsible for calling crypto.ClearBytes on the returned passphrase.
func GetPassphrase(v *core.Vault) ([]byte, PassphraseSource, error) {
	config, err := v.Config()
	if err != nil {
		return nil, SourceNone, err
	}
	if !config.Private() {
		return nil, SourceNone, nil
	}

	if p := core.PassphraseFromEnv(); p != nil {
		if err := v.VerifyPassphrase(p); err != nil {
			crypto.ClearBytes(p)
			return nil, SourceEnv, err
		}
		return p, SourceEnv, nil
	}

	if p, err := keyring.GetPassphrase(config.VaultID); err == nil {
		if err := v.VerifyPassphrase(p); err == nil {
			return p, SourceKeyring, nil
		}
		crypto.ClearBytes(p)
		fmt.Fprintln(os.Stderr, "warning: stale passphrase in keyring, removing it")
		_ = keyring.DeletePassphrase(config.VaultID)
	}

	p, err := core.ReadPassphrase("Enter passphrase: ")
	if err != nil {
		return nil, SourcePrompt, err
	}
	if err := v.VerifyPassphrase(p); err != nil {
		crypto.ClearBytes(p)
		return nil, SourcePrompt, err
	}
	return p, SourcePrompt, nil
}

// QuietPassphrase is like GetPassphrase but never prompts.
// It returns nil when no passphrase is available without asking.
func QuietPassphrase(v *core.Vault) []byte {
	config, err := v.Config()
	if err != nil || !config.Private() {
		return nil
	}
	candidates := [][]byte{core.PassphraseFromEnv()}
	if p, err := keyring.GetPassphrase(config.VaultID); err == nil {
		candidates = append(candidates, p)
	}
	var found []byte
	for _, p := range candidates {
		if p != nil && found == nil && v.VerifyPassphrase(p) == nil {
			found = p
			continue
		}
		crypto.ClearBytes(p)
	}
	return found
}

// OfferToSavePassphrase asks whether a prompted passphrase should go to the keyring
func OfferToSavePassphrase(v *core.Vault, passphrase []byte) {
	if !core.IsTerminal(os.Stdin) {
		return
	}
	vaultID, err := v.GetOrCreateVaultID()
	if err != nil {
		return
	}
	fmt.Fprint(os.Stderr, "Save passphrase to keyring? [y/N]: ")
	response, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	if response != "y" && response != "yes" {
		return
	}
	if err := keyring.SavePassphrase(vaultID, passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Passphrase saved to keyring")
}

// HandleError handles common errors consistently and exits
func HandleError(err error) {
	fmt.Fprintln(os.Stderr, describeError(err))
	os.Exit(1)
}

func describeError(err error) string {
	var blockErr *eris.BlockError
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		return "Error: vault not initialized\nRun 'eris init' first"
	case errors.Is(err, core.ErrAlreadyExists):
		return "Error: vault already exists in this directory\nUse 'eris status' to see current state"
	case errors.Is(err, core.ErrWrongPassphrase):
		return "Error: wrong passphrase"
	case errors.Is(err, core.ErrPassphraseRequired):
		return "Error: passphrase required\nSet " + core.EnvPassphrase + " or run interactively"
	case errors.Is(err, core.ErrNoEntries):
		return "Error: no entries in vault\nUse 'eris put <file>' to add files"
	case errors.Is(err, eris.ErrMalformedCapability):
		return fmt.Sprintf("Error: not a valid capability URN: %s", err)
	case errors.As(err, &blockErr) && errors.Is(err, eris.ErrNotFound):
		return fmt.Sprintf("Error: missing block %s (level %d)\nRun 'eris verify' to check the vault", blockErr.Reference, blockErr.Level)
	case errors.As(err, &blockErr) && errors.Is(err, eris.ErrIntegrity):
		return fmt.Sprintf("Error: corrupt block %s (level %d)", blockErr.Reference, blockErr.Level)
	default:
		return fmt.Sprintf("Error: %s", err)
	}
}

func formatSize(size int64) string {
	return units.BytesSize(float64(size))
}

func formatBlockSize(exp uint8) string {
	return formatSize(int64(1) << exp)
}
