package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/illarion/eris/internal/core"
	"github.com/illarion/eris/internal/eris"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{1024, "1KiB"},
		{1536, "1.5KiB"},
		{32 << 10, "32KiB"},
		{1 << 20, "1MiB"},
		{3 << 30, "3GiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
	if got := formatBlockSize(eris.BlockSize1K); got != "1KiB" {
		t.Errorf("formatBlockSize = %q", got)
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.ErrNotInitialized, "Run 'eris init' first"},
		{fmt.Errorf("put: %w", core.ErrWrongPassphrase), "wrong passphrase"},
		{core.ErrPassphraseRequired, core.EnvPassphrase},
		{fmt.Errorf("%w: bad", eris.ErrMalformedCapability), "not a valid capability URN"},
		{fmt.Errorf("get: %w", &eris.BlockError{Level: 2, Err: eris.ErrNotFound}), "missing block"},
		{&eris.BlockError{Level: 0, Err: eris.ErrIntegrity}, "corrupt block"},
		{errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("describeError(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}
