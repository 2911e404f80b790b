package cmd

import (
	"context"
	"fmt"
	"os"
)

// Extract writes vault entries back to files under the current directory
func Extract(ctx context.Context, names []string, force bool) {
	v := OpenVault()
	defer v.Close()

	result, err := v.Extract(ctx, names, force)
	if err != nil {
		HandleError(err)
	}

	for _, name := range result.Extracted {
		fmt.Printf("  extracted: %s\n", name)
	}
	for _, name := range result.Skipped {
		fmt.Printf("  skipped:   %s\n", name)
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "  error:     %s\n", msg)
	}

	fmt.Printf("\nextracted: %d files", len(result.Extracted))
	if len(result.Skipped) > 0 {
		fmt.Printf(", skipped: %d", len(result.Skipped))
		if !force {
			fmt.Printf(" (use --force to overwrite local changes)")
		}
	}
	fmt.Println()
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "error: %d errors occurred\n", len(result.Errors))
		os.Exit(1)
	}
}
