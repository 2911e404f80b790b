package cmd

import (
	"context"
	"fmt"
	"os"
)

// Verify checks that every block of the named entries, or of all entries, is present and intact
func Verify(ctx context.Context, names []string) {
	v := OpenVault()
	defer v.Close()

	results, err := v.Verify(ctx, names)
	if err != nil {
		HandleError(err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("  FAILED %s: %s\n", r.Name, r.Err)
			continue
		}
		fmt.Printf("  ok     %s (%s, %d blocks, level %d)\n", r.Name, formatSize(r.Stats.ContentSize), r.Stats.Blocks(), r.Stats.Level)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "error: %d of %d failed verification\n", failed, len(results))
		os.Exit(1)
	}
	fmt.Printf("\nverified: %d\n", len(results))
}
