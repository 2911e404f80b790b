package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
)

// Put encodes files into the vault and indexes them under their path
// relative to the root. Patterns are globbed relative to the root.
func (v *Vault) Put(ctx context.Context, patterns []string, passphrase []byte) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	opts, err := v.encodeOptions(db, passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(opts.ConvergenceSecret)

	names, err := v.expand(patterns)
	if err != nil {
		return nil, err
	}

	var entries []storage.Entry
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		entry, err := v.putFile(ctx, db, name, opts)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}

	if err := db.UpdateModified(); err != nil {
		v.logger.Warn("failed to update modification time", zap.Error(err))
	}
	return entries, nil
}

// expand globs the patterns relative to the root and normalizes every match.
// A pattern without matches is taken as a literal name.
func (v *Vault) expand(patterns []string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		abs := pattern
		if !filepath.IsAbs(pattern) {
			abs = filepath.Join(v.root.Path(), pattern)
		}
		matches, err := filepath.Glob(abs)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{abs}
		}
		for _, match := range matches {
			name, err := v.root.Normalize(match)
			if err != nil {
				return nil, fmt.Errorf("invalid path %s: %w", match, err)
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (v *Vault) putFile(ctx context.Context, db *storage.Bolt, name string, opts eris.Options) (storage.Entry, error) {
	info, err := v.root.Stat(name)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("cannot access %s: %w", name, err)
	}
	if info.IsDir() {
		return storage.Entry{}, fmt.Errorf("%s is a directory", name)
	}

	f, err := v.root.Open(name)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("cannot read %s: %w", name, err)
	}
	defer f.Close()

	c, stats, err := v.encode(ctx, db, f, opts)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}

	entry := storage.Entry{
		Name:       name,
		Size:       stats.ContentSize,
		Mode:       uint32(info.Mode().Perm()),
		ModTime:    info.ModTime(),
		Added:      time.Now(),
		Capability: c.String(),
	}
	if err := db.PutEntry(entry); err != nil {
		return storage.Entry{}, fmt.Errorf("failed to index %s: %w", name, err)
	}
	v.logger.Debug("put", zap.String("name", name), zap.Int64("size", entry.Size), zap.Int("blocks", stats.Blocks()))
	return entry, nil
}

// PutReader encodes a stream into the vault under name
func (v *Vault) PutReader(ctx context.Context, name string, r io.Reader, passphrase []byte) (storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return storage.Entry{}, err
	}
	name, err := v.root.Normalize(name)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("invalid name: %w", err)
	}
	db, err := v.open()
	if err != nil {
		return storage.Entry{}, err
	}
	defer db.Close()

	opts, err := v.encodeOptions(db, passphrase)
	if err != nil {
		return storage.Entry{}, err
	}
	defer crypto.ClearBytes(opts.ConvergenceSecret)

	c, stats, err := v.encode(ctx, db, r, opts)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	now := time.Now()
	entry := storage.Entry{
		Name:       name,
		Size:       stats.ContentSize,
		Mode:       FilePermSecure,
		ModTime:    now,
		Added:      now,
		Capability: c.String(),
	}
	if err := db.PutEntry(entry); err != nil {
		return storage.Entry{}, fmt.Errorf("failed to index %s: %w", name, err)
	}
	if err := db.UpdateModified(); err != nil {
		v.logger.Warn("failed to update modification time", zap.Error(err))
	}
	return entry, nil
}

func (v *Vault) encode(ctx context.Context, db *storage.Bolt, r io.Reader, opts eris.Options) (eris.ReadCapability, eris.Stats, error) {
	enc, err := eris.NewEncoder(ctx, v.store(db), opts)
	if err != nil {
		return eris.ReadCapability{}, eris.Stats{}, err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Abort()
		return eris.ReadCapability{}, eris.Stats{}, err
	}
	c, err := enc.Close()
	if err != nil {
		return eris.ReadCapability{}, eris.Stats{}, err
	}
	return c, enc.Stats(), nil
}
