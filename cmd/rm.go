package cmd

import (
	"context"
	"fmt"
	"os"
)

// Remove drops entries from the vault index. Blocks stay in the vault.
func Remove(ctx context.Context, names []string) {
	if len(names) == 0 {
		fmt.Fprintf(os.Stderr, "Error: rm requires at least one name argument\n")
		fmt.Fprintf(os.Stderr, "Usage: eris rm <name> [name...]\n")
		os.Exit(1)
	}

	v := OpenVault()
	defer v.Close()

	removed, err := v.Remove(ctx, names)
	if err != nil {
		HandleError(err)
	}
	if len(removed) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no entries match the specified names")
		os.Exit(1)
	}
	for _, name := range removed {
		fmt.Printf("removed: %s\n", name)
	}
}
