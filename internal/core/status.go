package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
)

// Entry states reported by Status
const (
	StateUnchanged = "unchanged"
	StateModified  = "modified"
	StateVaultOnly = "vault only"
	StateError     = "error"
)

// EntryStatus compares one entry with the local file of the same name
type EntryStatus struct {
	Name  string
	Size  int64
	State string
}

// StatusInfo contains status information
type StatusInfo struct {
	Entries           []EntryStatus
	LastModified      time.Time
	BlockSizeExponent uint8
	Mode              string
	EntryCount        int
	UnchangedCount    int
	ModifiedCount     int
	VaultOnlyCount    int
	TotalSize         int64
	Blocks            int
	StoredBytes       int64
	// Exact is false when a private vault was checked without its passphrase
	// and states were guessed from size and modification time.
	Exact bool
}

// List returns the indexed entries ordered by name. Entries whose names
// could not have been written by Put are skipped.
func (v *Vault) List(ctx context.Context) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return v.entries(db)
}

func (v *Vault) entries(db *storage.Bolt) ([]storage.Entry, error) {
	all, err := db.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	entries := make([]storage.Entry, 0, len(all))
	for _, e := range all {
		if _, err := v.root.Local(e.Name); err != nil {
			v.logger.Warn("skipping invalid entry", zap.String("name", e.Name), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Status compares every entry with the local file of the same name by
// re-encoding the local file without storing it. Private vaults need the
// passphrase for that; without it the comparison falls back to size and
// modification time.
func (v *Vault) Status(ctx context.Context, passphrase []byte) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	status := &StatusInfo{Entries: []EntryStatus{}, Exact: true}
	status.LastModified, _ = db.GetModified()
	status.Mode, _ = db.GetMode()
	status.BlockSizeExponent, _ = db.GetBlockSizeExponent()
	status.Blocks, status.StoredBytes, err = db.BlockStats()
	if err != nil {
		return nil, fmt.Errorf("failed to count blocks: %w", err)
	}

	opts, err := v.encodeOptions(db, passphrase)
	switch {
	case errors.Is(err, ErrPassphraseRequired):
		status.Exact = false
	case err != nil:
		return nil, err
	}
	defer crypto.ClearBytes(opts.ConvergenceSecret)

	entries, err := v.entries(db)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		es := EntryStatus{Name: entry.Name, Size: entry.Size}
		if status.Exact {
			es.State = v.compare(ctx, entry, opts)
		} else {
			es.State = v.compareMetadata(entry)
		}

		status.EntryCount++
		status.TotalSize += entry.Size
		switch es.State {
		case StateUnchanged:
			status.UnchangedCount++
		case StateModified:
			status.ModifiedCount++
		case StateVaultOnly:
			status.VaultOnlyCount++
		}
		status.Entries = append(status.Entries, es)
	}
	return status, nil
}

// compare re-encodes the local file into a discarding store and compares capabilities
func (v *Vault) compare(ctx context.Context, entry storage.Entry, opts eris.Options) string {
	f, err := v.root.Open(entry.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return StateVaultOnly
	}
	if err != nil {
		return StateError
	}
	defer f.Close()

	opts.Logger = nil
	c, err := eris.Encode(ctx, f, &storage.Discard{}, opts)
	if err != nil {
		return StateError
	}
	if c.String() != entry.Capability {
		return StateModified
	}
	return StateUnchanged
}

func (v *Vault) compareMetadata(entry storage.Entry) string {
	info, err := v.root.Stat(entry.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return StateVaultOnly
	}
	if err != nil {
		return StateError
	}
	if info.Size() != entry.Size || !info.ModTime().Equal(entry.ModTime) {
		return StateModified
	}
	return StateUnchanged
}

// Remove drops the entries matching the names from the index and returns
// the names removed. Their blocks stay in the vault.
func (v *Vault) Remove(ctx context.Context, names []string) ([]string, error) {
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

	removed := []string{}
	for _, entry := range filterEntries(entries, names) {
		ok, err := db.RemoveEntry(entry.Name)
		if err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name, err)
		}
		if ok {
			removed = append(removed, entry.Name)
		}
	}
	if len(removed) > 0 {
		if err := db.UpdateModified(); err != nil {
			v.logger.Warn("failed to update modification time", zap.Error(err))
		}
	}
	return removed, nil
}

// VerifyResult is the outcome of checking one entry
type VerifyResult struct {
	Name  string
	Stats eris.Stats
	Err   error
}

// Verify checks that every block of the named entries, or of all entries,
// is present and intact. Names may also be capability URNs.
func (v *Vault) Verify(ctx context.Context, names []string) ([]VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if len(names) == 0 {
		entries, err := v.entries(db)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
	}

	store := v.store(db)
	results := make([]VerifyResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := VerifyResult{Name: name}
		c, _, err := v.resolve(db, name)
		if err == nil {
			result.Stats, err = eris.Verify(ctx, c, store, v.decodeOptions())
		}
		result.Err = err
		results = append(results, result)
	}
	return results, nil
}
