package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/git"
)

// Status shows vault parameters and compares every entry with the local files.
// It never prompts: private vaults use ERIS_PASSPHRASE or the keyring when
// available and fall back to comparing size and modification time.
func Status(ctx context.Context) {
	v := OpenVault()
	defer v.Close()

	passphrase := QuietPassphrase(v)
	defer crypto.ClearBytes(passphrase)

	status, err := v.Status(ctx, passphrase)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Vault: %s\n", v.Path())
	fmt.Printf("  mode:       %s\n", status.Mode)
	fmt.Printf("  block size: %s\n", formatBlockSize(status.BlockSizeExponent))
	fmt.Printf("  entries:    %d (%s)\n", status.EntryCount, formatSize(status.TotalSize))
	fmt.Printf("  blocks:     %d (%s stored)\n", status.Blocks, formatSize(status.StoredBytes))
	if !status.LastModified.IsZero() {
		fmt.Printf("  modified:   %s\n", status.LastModified.Format(time.RFC3339))
	}

	if len(status.Entries) == 0 {
		fmt.Println("\nNo entries in vault")
		fmt.Println("Use 'eris put <file>' to add files")
		return
	}

	fmt.Println("\nEntries:")
	names := make([]string, 0, len(status.Entries))
	for _, entry := range status.Entries {
		fmt.Printf("  %-10s %s (%s)\n", entry.State, entry.Name, formatSize(entry.Size))
		names = append(names, entry.Name)
	}
	fmt.Printf("\n%d unchanged, %d modified, %d vault only\n", status.UnchangedCount, status.ModifiedCount, status.VaultOnlyCount)
	if !status.Exact {
		fmt.Println("(passphrase not available, compared by size and modification time)")
	}

	vaultFile, err := filepath.Rel(".", v.Path())
	if err != nil {
		vaultFile = v.Path()
	}
	fmt.Print(git.Check(ctx, ".", vaultFile, names).Format())
}
