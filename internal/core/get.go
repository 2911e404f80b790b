package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
)

// Get decodes an entry or capability URN and writes the content to w.
// Nothing is written unless every block decodes.
func (v *Vault) Get(ctx context.Context, nameOrURN string, w io.Writer) (int64, error) {
	db, err := v.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	c, _, err := v.resolve(db, nameOrURN)
	if err != nil {
		return 0, err
	}
	content, err := eris.Decode(ctx, c, v.store(db), v.decodeOptions())
	if err != nil {
		return 0, err
	}
	defer crypto.ClearBytes(content)

	n, err := w.Write(content)
	return int64(n), err
}

// Stream reads decoded content lazily and keeps the vault open until closed
type Stream struct {
	*eris.Reader
	db *storage.Bolt
}

func (s *Stream) Close() error {
	return s.db.Close()
}

// Open returns a streaming reader over an entry or capability URN
func (v *Vault) Open(ctx context.Context, nameOrURN string) (*Stream, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	c, _, err := v.resolve(db, nameOrURN)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Stream{Reader: eris.NewReader(ctx, c, v.store(db)), db: db}, nil
}

// ExtractResult contains the results of an extract operation
type ExtractResult struct {
	Extracted []string // Files written
	Skipped   []string // Files left alone, identical or changed locally
	Errors    []string // Files that could not be decoded or written
}

// Extract decodes entries back to files under the root. Names may be globs;
// no names means every entry. A local file that differs from the vault is
// only replaced when force is set.
func (v *Vault) Extract(ctx context.Context, names []string, force bool) (*ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	entries, err := db.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	if len(names) > 0 {
		entries = filterEntries(entries, names)
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: no entries match the specified names", ErrEntryNotFound)
		}
	}

	result := &ExtractResult{Extracted: []string{}, Skipped: []string{}, Errors: []string{}}
	store := v.store(db)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status, err := v.extractEntry(ctx, store, entry, force)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name, err))
			v.logger.Warn("extract failed", zap.String("name", entry.Name), zap.Error(err))
		case status == extractWritten:
			result.Extracted = append(result.Extracted, entry.Name)
		default:
			result.Skipped = append(result.Skipped, entry.Name)
		}
	}
	return result, nil
}

type extractStatus int

const (
	extractWritten extractStatus = iota
	extractUnchanged
	extractConflict
)

func (v *Vault) extractEntry(ctx context.Context, store storage.Store, entry storage.Entry, force bool) (extractStatus, error) {
	if _, err := v.root.Local(entry.Name); err != nil {
		return 0, fmt.Errorf("invalid name in vault: %w", err)
	}
	c, err := eris.ParseCapability(entry.Capability)
	if err != nil {
		return 0, err
	}
	content, err := eris.Decode(ctx, c, store, v.decodeOptions())
	if err != nil {
		return 0, err
	}
	defer crypto.ClearBytes(content)

	local, err := v.root.ReadFile(entry.Name)
	switch {
	case err == nil:
		identical := CompareFiles(local, content)
		crypto.ClearBytes(local)
		if identical {
			return extractUnchanged, nil
		}
		if !force {
			return extractConflict, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return 0, err
	}

	f, err := v.root.Create(entry.Name, secureFileMode(entry.Mode), DirPermSecure, true)
	if err != nil {
		return 0, err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	if abs, err := v.root.Abs(entry.Name); err == nil && !entry.ModTime.IsZero() {
		if err := os.Chtimes(abs, time.Now(), entry.ModTime); err != nil {
			v.logger.Warn("failed to restore modification time", zap.String("name", entry.Name), zap.Error(err))
		}
	}
	return extractWritten, nil
}

// secureFileMode keeps the owner bits of a stored mode and drops group and other.
// Returns FilePermSecure (0600) if the result would be zero.
func secureFileMode(mode uint32) os.FileMode {
	secure := os.FileMode(mode) & 0700
	if secure == 0 {
		return FilePermSecure
	}
	return secure
}

// filterEntries keeps the entries matching any of the names, exactly or as a
// glob in which "*" stays within one path element and "**" crosses them.
// Names that are not valid globs only match exactly.
func filterEntries(entries []storage.Entry, names []string) []storage.Entry {
	exact := make(map[string]bool, len(names))
	var globs []glob.Glob
	for _, name := range names {
		pattern := path.Clean(filepath.ToSlash(name))
		exact[pattern] = true
		if g, err := glob.Compile(pattern, '/'); err == nil {
			globs = append(globs, g)
		}
	}

	var result []storage.Entry
	for _, entry := range entries {
		if exact[entry.Name] || slices.ContainsFunc(globs, func(g glob.Glob) bool { return g.Match(entry.Name) }) {
			result = append(result, entry)
		}
	}
	return result
}
