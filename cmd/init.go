package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/eris/internal/core"
	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
)

// Init creates a new vault in the current directory
func Init(private bool, blockSize string) {
	exp, err := eris.ParseBlockSize(blockSize)
	if err != nil {
		HandleError(err)
	}

	v := OpenVault()
	defer v.Close()

	opts := core.InitOptions{BlockSizeExponent: exp, Private: private}
	if private {
		// Read passphrase (env var or prompt with confirmation)
		passphrase := core.PassphraseFromEnv()
		if passphrase == nil {
			passphrase, err = core.ReadPassphraseConfirm()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
		}
		defer crypto.ClearBytes(passphrase)
		opts.Passphrase = passphrase
	}

	if err := v.Init(opts); err != nil {
		HandleError(err)
	}

	mode := core.ModePublic
	if private {
		mode = core.ModePrivate
	}
	fmt.Printf("Initialized %s (%s, %s blocks)\n", v.Path(), mode, formatBlockSize(exp))
	if private {
		fmt.Println("The passphrase is not stored anywhere. Without it nothing new can be")
		fmt.Println("put into this vault, though existing capabilities still decode.")
	}
}
