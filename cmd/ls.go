package cmd

import (
	"context"
	"fmt"
)

// Ls shows the entries of the vault. Quiet prints bare names, long adds capabilities.
func Ls(ctx context.Context, quiet, long bool) {
	v := OpenVault()
	defer v.Close()

	// List entries (no passphrase required)
	entries, err := v.List(ctx)
	if err != nil {
		HandleError(err)
	}

	if quiet {
		for _, entry := range entries {
			fmt.Println(entry.Name)
		}
		return
	}

	if len(entries) == 0 {
		fmt.Println("No entries in vault")
		return
	}
	fmt.Println("Entries:")
	for _, entry := range entries {
		fmt.Printf("  %s (%s)\n", entry.Name, formatSize(entry.Size))
		if long {
			fmt.Printf("    %s\n", entry.Capability)
		}
	}
}
