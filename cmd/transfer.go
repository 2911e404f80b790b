package cmd

import (
	"context"
	"fmt"
)

// Export copies the blocks of an entry or capability into a bundle directory
func Export(ctx context.Context, target, dir string) {
	v := OpenVault()
	defer v.Close()

	c, stats, err := v.Export(ctx, target, dir)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Exported %d blocks (%s) to %s\n", stats.Blocks(), formatSize(stats.ContentSize), dir)
	fmt.Println(c)
}

// Import copies the blocks of a capability from a bundle directory, indexing it under name if given
func Import(ctx context.Context, urn, dir, name string) {
	v := OpenVault()
	defer v.Close()

	entry, err := v.Import(ctx, urn, dir, name)
	if err != nil {
		HandleError(err)
	}
	if name == "" {
		fmt.Printf("Imported %s\n", formatSize(entry.Size))
		return
	}
	printEntry(*entry)
}
