package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	TextSampleSize   = 8192 // Bytes sampled for text/binary detection
	TextThresholdPct = 10   // Max % control characters in a text file
)

// IsText reports whether data looks like text: no NUL bytes, valid UTF-8
// and few control characters in the first TextSampleSize bytes.
func IsText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	sample := data[:min(len(data), TextSampleSize)]
	if !utf8.Valid(sample) {
		// A multi-byte rune may be cut at the end of the sample.
		trimmed := sample[:max(0, len(sample)-utf8.UTFMax)]
		if len(sample) < len(data) && utf8.Valid(trimmed) {
			sample = trimmed
		} else {
			return false
		}
	}

	control := 0
	for _, b := range sample {
		if (b < 0x20 && b != '\t' && b != '\n' && b != '\r') || b == 0x7f {
			control++
		}
	}
	return control <= len(sample)*TextThresholdPct/100
}

// CompareFiles reports whether two contents are identical
func CompareFiles(local, vaultData []byte) bool {
	return bytes.Equal(local, vaultData)
}

// GenerateUnifiedDiff returns a patch from the vault content to the local
// content, or an empty string if they are identical.
func GenerateUnifiedDiff(name string, vaultData, localData []byte) string {
	if CompareFiles(vaultData, localData) {
		return ""
	}
	if !IsText(vaultData) || !IsText(localData) {
		return fmt.Sprintf("Binary file %s has changed\n", name)
	}

	dmp := diffmatchpatch.New()
	vaultText, localText := string(vaultData), string(localData)
	a, b, lines := dmp.DiffLinesToChars(vaultText, localText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	patches := dmp.PatchMake(vaultText, diffs)
	if len(patches) == 0 {
		return ""
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- vault/%s\n", name)
	fmt.Fprintf(&out, "+++ local/%s\n", name)
	out.WriteString(dmp.PatchToText(patches))
	return out.String()
}

// FileDiff is the difference between one entry and its local file
type FileDiff struct {
	Name    string
	Missing bool   // no local file
	Patch   string // empty when identical
}

// Diff decodes the named entries, or every entry, and compares them with
// the local files.
func (v *Vault) Diff(ctx context.Context, names []string) ([]FileDiff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	entries, err := v.entries(db)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		entries = filterEntries(entries, names)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	store := v.store(db)
	diffs := make([]FileDiff, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		local, err := v.root.ReadFile(entry.Name)
		if errors.Is(err, fs.ErrNotExist) {
			diffs = append(diffs, FileDiff{Name: entry.Name, Missing: true})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", entry.Name, err)
		}

		c, err := eris.ParseCapability(entry.Capability)
		if err != nil {
			crypto.ClearBytes(local)
			return nil, fmt.Errorf("entry %s: %w", entry.Name, err)
		}
		content, err := eris.Decode(ctx, c, store, v.decodeOptions())
		if err != nil {
			crypto.ClearBytes(local)
			return nil, fmt.Errorf("entry %s: %w", entry.Name, err)
		}

		diffs = append(diffs, FileDiff{Name: entry.Name, Patch: GenerateUnifiedDiff(entry.Name, content, local)})
		crypto.ClearBytes(content)
		crypto.ClearBytes(local)
	}
	return diffs, nil
}
