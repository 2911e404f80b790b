package core

import (
	"context"
	"fmt"
	"time"

	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
)

// Export copies every block of an entry or capability into a badger bundle
// in dir. The bundle together with the capability URN is enough to import
// the content into another vault.
func (v *Vault) Export(ctx context.Context, nameOrURN, dir string) (eris.ReadCapability, eris.Stats, error) {
	db, err := v.open()
	if err != nil {
		return eris.ReadCapability{}, eris.Stats{}, err
	}
	defer db.Close()

	c, _, err := v.resolve(db, nameOrURN)
	if err != nil {
		return eris.ReadCapability{}, eris.Stats{}, err
	}

	bundle, err := storage.OpenBadger(dir, v.logger)
	if err != nil {
		return eris.ReadCapability{}, eris.Stats{}, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer bundle.Close()

	stats, err := eris.Copy(ctx, c, v.store(db), storage.Instrument(v.logger, bundle))
	if err != nil {
		return eris.ReadCapability{}, eris.Stats{}, err
	}
	v.logger.Debug("exported", zap.String("capability", c.String()), zap.String("bundle", dir), zap.Int("blocks", stats.Blocks()))
	return c, stats, nil
}

// Import copies the blocks of a capability from a badger bundle into the
// vault, checking each of them. With a non-empty name the capability is
// also indexed under it.
func (v *Vault) Import(ctx context.Context, urn, dir, name string) (*storage.Entry, error) {
	c, err := eris.ParseCapability(urn)
	if err != nil {
		return nil, err
	}
	if name != "" {
		if name, err = v.root.Normalize(name); err != nil {
			return nil, fmt.Errorf("invalid name: %w", err)
		}
	}

	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	bundle, err := storage.OpenBadger(dir, v.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer bundle.Close()

	stats, err := eris.Copy(ctx, c, bundle, v.store(db))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &storage.Entry{
		Name:       name,
		Size:       stats.ContentSize,
		Mode:       FilePermSecure,
		ModTime:    now,
		Added:      now,
		Capability: c.String(),
	}
	if name != "" {
		if err := db.PutEntry(*entry); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", name, err)
		}
	}
	if err := db.UpdateModified(); err != nil {
		v.logger.Warn("failed to update modification time", zap.Error(err))
	}
	return entry, nil
}
