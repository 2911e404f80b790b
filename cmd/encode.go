package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/storage"
)

// Encode reads stdin and prints its capability URN without storing any block.
// Does not need a vault.
func Encode(ctx context.Context, blockSize, secretHex string) {
	exp, err := eris.ParseBlockSize(blockSize)
	if err != nil {
		HandleError(err)
	}

	opts := eris.DefaultOptions()
	opts.BlockSizeExponent = exp
	opts.Logger = logger
	if secretHex != "" {
		secret, err := hex.DecodeString(secretHex)
		if err != nil || len(secret) != crypto.SecretSize {
			fmt.Fprintf(os.Stderr, "Error: --secret-hex must be %d hex-encoded bytes\n", crypto.SecretSize)
			os.Exit(1)
		}
		defer crypto.ClearBytes(secret)
		opts.ConvergenceSecret = secret
	}

	store := &storage.Discard{}
	c, err := eris.Encode(ctx, os.Stdin, store, opts)
	if err != nil {
		HandleError(err)
	}
	fmt.Println(c)
	fmt.Fprintf(os.Stderr, "%d blocks, %s encoded\n", store.Blocks(), formatSize(store.Bytes()))
}
