package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/eris"
	"github.com/illarion/eris/internal/security"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
)

const (
	VaultFile      = ".eris"
	DirPermSecure  = 0700 // Directory: owner rwx only
	FilePermSecure = 0600 // File: owner rw only

	ModePublic  = "public"
	ModePrivate = "private"

	passphraseCheckString = "eris-passphrase-check"
)

var (
	ErrNotInitialized     = errors.New("vault not initialized")
	ErrAlreadyExists      = errors.New("vault already exists")
	ErrWrongPassphrase    = errors.New("wrong passphrase")
	ErrPassphraseRequired = errors.New("passphrase required")
	ErrEntryNotFound      = errors.New("no such entry in vault")
	ErrNoEntries          = errors.New("no entries in vault")
)

// Vault stores files as eris encodings inside one bbolt database.
// Files are read from and written to the root directory only.
type Vault struct {
	path        string
	root        *security.Root
	logger      *zap.Logger
	concurrency int
}

// InitOptions configures a new vault
type InitOptions struct {
	BlockSizeExponent uint8 // zero means eris.BlockSize32K
	Private           bool
	Passphrase        []byte
	Iterations        int // KDF iterations, zero means crypto.DefaultIters
}

// Config describes an initialized vault
type Config struct {
	BlockSizeExponent uint8
	Mode              string
	Iterations        uint32
	VaultID           string
	Modified          time.Time
}

// Private reports whether the vault derives its secret from a passphrase
func (c *Config) Private() bool {
	return c.Mode == ModePrivate
}

// New returns the vault stored as .eris in dir
func New(dir string) (*Vault, error) {
	return NewAt(dir, filepath.Join(dir, VaultFile))
}

// NewAt returns the vault stored in the file vaultPath, with files confined to dir
func NewAt(dir, vaultPath string) (*Vault, error) {
	root, err := security.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open working directory: %w", err)
	}
	return &Vault{
		path:   vaultPath,
		root:   root,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger used for vault and block store events
func (v *Vault) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v.logger = logger
}

// SetConcurrency bounds concurrent block operations, zero means one per CPU
func (v *Vault) SetConcurrency(n int) {
	v.concurrency = n
}

// Path returns the vault file path
func (v *Vault) Path() string {
	return v.path
}

// Close releases resources held by the vault
func (v *Vault) Close() error {
	return v.root.Close()
}

// open opens the vault database, failing with ErrNotInitialized when it does not exist
func (v *Vault) open() (*storage.Bolt, error) {
	if _, err := os.Stat(v.path); err != nil {
		return nil, ErrNotInitialized
	}
	db, err := storage.Open(v.path)
	if err != nil {
		return nil, err
	}
	ok, err := db.IsInitialized()
	if err != nil || !ok {
		db.Close()
		return nil, ErrNotInitialized
	}
	return db, nil
}

// store wraps the database with debug logging of block traffic
func (v *Vault) store(db *storage.Bolt) storage.Store {
	return storage.Instrument(v.logger, db)
}

// Init creates a new vault
func (v *Vault) Init(opts InitOptions) error {
	if _, err := os.Stat(v.path); err == nil {
		return ErrAlreadyExists
	}

	exp := opts.BlockSizeExponent
	if exp == 0 {
		exp = eris.BlockSize32K
	}
	if err := eris.CheckBlockSizeExponent(exp); err != nil {
		return err
	}
	if opts.Private && len(opts.Passphrase) == 0 {
		return ErrPassphraseRequired
	}

	db, err := storage.Open(v.path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.SetBlockSizeExponent(exp); err != nil {
		return fmt.Errorf("failed to store block size: %w", err)
	}

	mode := ModePublic
	if opts.Private {
		mode = ModePrivate
		if err := initPassphrase(db, opts.Passphrase, opts.Iterations); err != nil {
			return err
		}
	}
	if err := db.SetMode(mode); err != nil {
		return fmt.Errorf("failed to store mode: %w", err)
	}
	if _, err := db.GetOrCreateVaultID(); err != nil {
		return fmt.Errorf("failed to create vault ID: %w", err)
	}

	v.logger.Debug("vault initialized", zap.String("path", v.path), zap.String("mode", mode), zap.Uint8("block_size_exponent", exp))
	return nil
}

func initPassphrase(db *storage.Bolt, passphrase []byte, iterations int) error {
	kdf, err := crypto.NewKDF()
	if err != nil {
		return fmt.Errorf("failed to create KDF: %w", err)
	}
	if iterations > 0 {
		kdf.Iterations = iterations
	}
	if err := db.SetSalt(kdf.Salt); err != nil {
		return fmt.Errorf("failed to store salt: %w", err)
	}
	if err := db.SetIterations(uint32(kdf.Iterations)); err != nil {
		return fmt.Errorf("failed to store iterations: %w", err)
	}

	secret := kdf.DeriveSecret(passphrase)
	defer crypto.ClearBytes(secret)
	check, err := passphraseCheck(secret)
	if err != nil {
		return err
	}
	if err := db.SetCheck(check); err != nil {
		return fmt.Errorf("failed to store passphrase check: %w", err)
	}
	return nil
}

// passphraseCheck derives the value that proves knowledge of a secret without revealing it
func passphraseCheck(secret []byte) ([]byte, error) {
	key, err := crypto.DeriveKey([]byte(passphraseCheckString), secret)
	if err != nil {
		return nil, err
	}
	return key[:], nil
}

// secret returns the convergence secret of the vault: nil for public vaults,
// the passphrase-derived secret for private ones.
func (v *Vault) secret(db *storage.Bolt, passphrase []byte) ([]byte, error) {
	mode, err := db.GetMode()
	if err != nil {
		return nil, fmt.Errorf("failed to read mode: %w", err)
	}
	if mode != ModePrivate {
		return nil, nil
	}
	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}

	salt, err := db.GetSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to get salt: %w", err)
	}
	iterations, err := db.GetIterations()
	if err != nil {
		return nil, fmt.Errorf("failed to get iterations: %w", err)
	}
	stored, err := db.GetCheck()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase check: %w", err)
	}

	kdf := &crypto.KDF{Salt: salt, Iterations: int(iterations)}
	secret := kdf.DeriveSecret(passphrase)
	check, err := passphraseCheck(secret)
	if err != nil {
		crypto.ClearBytes(secret)
		return nil, err
	}
	if !crypto.ConstantTimeCompare(check, stored) {
		crypto.ClearBytes(secret)
		return nil, ErrWrongPassphrase
	}
	return secret, nil
}

// encodeOptions returns the options every encoding of the vault uses
func (v *Vault) encodeOptions(db *storage.Bolt, passphrase []byte) (eris.Options, error) {
	exp, err := db.GetBlockSizeExponent()
	if err != nil {
		return eris.Options{}, fmt.Errorf("failed to read block size: %w", err)
	}
	secret, err := v.secret(db, passphrase)
	if err != nil {
		return eris.Options{}, err
	}
	return eris.Options{
		BlockSizeExponent: exp,
		ConvergenceSecret: secret,
		Concurrency:       v.concurrency,
		Logger:            v.logger,
	}, nil
}

func (v *Vault) decodeOptions() eris.DecodeOptions {
	return eris.DecodeOptions{Concurrency: v.concurrency, Logger: v.logger}
}

// Secret returns the convergence secret for the passphrase, nil for public vaults.
// The caller should clear it with crypto.ClearBytes.
func (v *Vault) Secret(passphrase []byte) ([]byte, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return v.secret(db, passphrase)
}

// VerifyPassphrase checks the passphrase of a private vault.
// Public vaults accept any passphrase.
func (v *Vault) VerifyPassphrase(passphrase []byte) error {
	secret, err := v.Secret(passphrase)
	crypto.ClearBytes(secret)
	return err
}

// Config returns the parameters of the vault
func (v *Vault) Config() (*Config, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	exp, err := db.GetBlockSizeExponent()
	if err != nil {
		return nil, fmt.Errorf("failed to read block size: %w", err)
	}
	mode, err := db.GetMode()
	if err != nil {
		return nil, fmt.Errorf("failed to read mode: %w", err)
	}
	config := &Config{BlockSizeExponent: exp, Mode: mode}
	if mode == ModePrivate {
		config.Iterations, _ = db.GetIterations()
	}
	config.VaultID, _ = db.GetVaultID()
	config.Modified, _ = db.GetModified()
	return config, nil
}

// Compact rewrites the vault file to drop pages freed by index updates.
// Blocks of removed entries are kept.
func (v *Vault) Compact() error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Compact()
}

// VaultID returns the vault ID used as keyring account
func (v *Vault) VaultID() (string, error) {
	db, err := v.open()
	if err != nil {
		return "", err
	}
	defer db.Close()
	return db.GetVaultID()
}

// GetOrCreateVaultID returns the vault ID, creating one for vaults that lack it
func (v *Vault) GetOrCreateVaultID() (string, error) {
	db, err := v.open()
	if err != nil {
		return "", err
	}
	defer db.Close()
	return db.GetOrCreateVaultID()
}

// resolve turns an entry name or a capability URN into a capability.
// The entry is nil for URNs that are not indexed.
func (v *Vault) resolve(db *storage.Bolt, nameOrURN string) (eris.ReadCapability, *storage.Entry, error) {
	if strings.HasPrefix(nameOrURN, eris.URNPrefix) {
		c, err := eris.ParseCapability(nameOrURN)
		return c, nil, err
	}

	name, err := v.root.Normalize(nameOrURN)
	if err != nil {
		return eris.ReadCapability{}, nil, err
	}
	entry, err := db.GetEntry(name)
	if err != nil {
		return eris.ReadCapability{}, nil, err
	}
	if entry == nil {
		return eris.ReadCapability{}, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	c, err := eris.ParseCapability(entry.Capability)
	if err != nil {
		return eris.ReadCapability{}, nil, fmt.Errorf("entry %s: %w", name, err)
	}
	return c, entry, nil
}
