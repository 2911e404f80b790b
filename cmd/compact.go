package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact rewrites the vault file without its freed pages
func Compact(_ context.Context) {
	v := OpenVault()
	defer v.Close()

	info, err := os.Stat(v.Path())
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := v.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(v.Path())
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(info.Size()))
}
