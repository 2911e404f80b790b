package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/eris/internal/core"
	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/keyring"
)

// requirePrivate exits for public vaults, which have no passphrase
func requirePrivate(v *core.Vault) *core.Config {
	config, err := v.Config()
	if err != nil {
		HandleError(err)
	}
	if !config.Private() {
		fmt.Println("Vault is public, no passphrase to store")
		os.Exit(0)
	}
	return config
}

// KeyringSave saves the passphrase to the OS keyring
func KeyringSave() {
	v := OpenVault()
	defer v.Close()
	requirePrivate(v)

	passphrase := core.PassphraseFromEnv()
	if passphrase == nil {
		var err error
		passphrase, err = core.ReadPassphrase("Enter passphrase: ")
		if err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(passphrase)

	if err := v.VerifyPassphrase(passphrase); err != nil {
		HandleError(err)
	}
	vaultID, err := v.GetOrCreateVaultID()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassphrase(vaultID, passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("Passphrase saved to keyring")
}

// KeyringDelete removes the passphrase from the OS keyring
func KeyringDelete() {
	v := OpenVault()
	defer v.Close()
	config := requirePrivate(v)

	if !keyring.HasPassphrase(config.VaultID) {
		fmt.Println("No passphrase stored in keyring")
		return
	}
	if err := keyring.DeletePassphrase(config.VaultID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete from keyring: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("Passphrase removed from keyring")
}

// KeyringStatus checks if a passphrase is stored in the keyring
func KeyringStatus() {
	v := OpenVault()
	defer v.Close()
	config := requirePrivate(v)

	if keyring.HasPassphrase(config.VaultID) {
		fmt.Println("Passphrase: stored in keyring")
	} else {
		fmt.Println("Passphrase: not stored")
	}
}
