package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/storage"
)

// Put encodes files, or stdin when the only argument is "-", into the vault
func Put(ctx context.Context, args []string, name string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: put requires at least one file argument\n")
		fmt.Fprintf(os.Stderr, "Usage: eris put [-n name] <file...|->\n")
		os.Exit(1)
	}
	stdin := len(args) == 1 && args[0] == "-"
	if stdin && name == "" {
		fmt.Fprintf(os.Stderr, "Error: reading stdin requires -n <name>\n")
		os.Exit(1)
	}
	if !stdin && name != "" {
		fmt.Fprintf(os.Stderr, "Error: -n is only valid with '-'\n")
		os.Exit(1)
	}

	v := OpenVault()
	defer v.Close()

	passphrase, source, err := GetPassphrase(v)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	if stdin {
		entry, err := v.PutReader(ctx, name, os.Stdin, passphrase)
		if err != nil {
			HandleError(err)
		}
		printEntry(entry)
	} else {
		// Entries stored before a failure are reported too
		entries, err := v.Put(ctx, args, passphrase)
		for _, entry := range entries {
			printEntry(entry)
		}
		if err != nil {
			HandleError(err)
		}
	}

	if source == SourcePrompt {
		OfferToSavePassphrase(v, passphrase)
	}
}

func printEntry(entry storage.Entry) {
	fmt.Printf("%s (%s)\n  %s\n", entry.Name, formatSize(entry.Size), entry.Capability)
}
