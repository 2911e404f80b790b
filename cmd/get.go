package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/illarion/eris/internal/core"
)

// Get decodes an entry or capability URN to a file, or to stdout when output is empty or "-".
// Nothing is written if any block fails to decode.
func Get(ctx context.Context, target, output string) {
	v := OpenVault()
	defer v.Close()

	if output == "" || output == "-" {
		if _, err := v.Get(ctx, target, os.Stdout); err != nil {
			HandleError(err)
		}
		return
	}

	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, core.FilePermSecure)
	if err != nil {
		HandleError(err)
	}
	n, err := v.Get(ctx, target, f)
	if err != nil {
		f.Close()
		os.Remove(output)
		HandleError(err)
	}
	if err := f.Close(); err != nil {
		HandleError(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%s)\n", output, formatSize(n))
}

// Cat streams an entry or capability URN to stdout as it decodes.
// Binary content is refused when stdout is a terminal.
func Cat(ctx context.Context, target string) {
	v := OpenVault()
	defer v.Close()

	s, err := v.Open(ctx, target)
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	r := bufio.NewReaderSize(s, core.TextSampleSize)
	if core.IsTerminal(os.Stdout) {
		sample, err := r.Peek(core.TextSampleSize)
		if err != nil && err != io.EOF {
			HandleError(err)
		}
		if !core.IsText(sample) {
			fmt.Fprintln(os.Stderr, "Error: binary content, redirect stdout or use 'eris get -o <file>'")
			os.Exit(1)
		}
	}

	if _, err := io.Copy(os.Stdout, r); err != nil {
		HandleError(err)
	}
}
