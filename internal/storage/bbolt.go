package storage

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/illarion/eris/internal/crypto"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket = []byte("config") // Vault parameters and timestamps
	IndexBucket  = []byte("index")  // Named entries -> capability URN
	BlocksBucket = []byte("blocks") // Reference -> ciphertext
)

// Config keys
var (
	ConfigVersion   = []byte("version")
	ConfigCreated   = []byte("created")
	ConfigModified  = []byte("modified")
	ConfigBlockSize = []byte("block_size")
	ConfigMode      = []byte("mode")
	ConfigSalt      = []byte("salt")
	ConfigIters     = []byte("iterations")
	ConfigCheck     = []byte("check")
	ConfigVaultID   = []byte("vault_id")
)

// Entry is a named capability in the vault index
type Entry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Mode       uint32    `json:"mode"`
	ModTime    time.Time `json:"modTime"`
	Added      time.Time `json:"added"`
	Capability string    `json:"capability"`
}

// Bolt is a BBolt-backed vault: block store plus index and config
type Bolt struct {
	db *bolt.DB
}

// Open opens or creates a vault database
func Open(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close closes the database
func (s *Bolt) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Bolt) Path() string {
	return s.db.Path()
}

func (s *Bolt) String() string {
	return "bolt:" + s.db.Path()
}

// Initialize creates the bucket structure for a new vault
func (s *Bolt) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, IndexBucket, BlocksBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Bolt) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

func (s *Bolt) setConfig(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		return config.Put(key, value)
	})
}

func (s *Bolt) getConfig(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		v := config.Get(key)
		if v == nil {
			return fmt.Errorf("%s not found", key)
		}
		// Make a copy since the slice is only valid during the transaction
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// SetBlockSizeExponent stores the block size used by every encoding in the vault
func (s *Bolt) SetBlockSizeExponent(exp uint8) error {
	return s.setConfig(ConfigBlockSize, []byte{exp})
}

// GetBlockSizeExponent retrieves the vault block size exponent
func (s *Bolt) GetBlockSizeExponent() (uint8, error) {
	v, err := s.getConfig(ConfigBlockSize)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("invalid block size record")
	}
	return v[0], nil
}

// SetMode stores the vault mode ("public" or "private")
func (s *Bolt) SetMode(mode string) error {
	return s.setConfig(ConfigMode, []byte(mode))
}

// GetMode retrieves the vault mode
func (s *Bolt) GetMode() (string, error) {
	v, err := s.getConfig(ConfigMode)
	return string(v), err
}

// SetSalt stores the KDF salt
func (s *Bolt) SetSalt(salt []byte) error {
	return s.setConfig(ConfigSalt, salt)
}

// GetSalt retrieves the KDF salt
func (s *Bolt) GetSalt() ([]byte, error) {
	return s.getConfig(ConfigSalt)
}

// SetIterations stores the KDF iterations
func (s *Bolt) SetIterations(iterations uint32) error {
	iters := make([]byte, 4)
	binary.BigEndian.PutUint32(iters, iterations)
	return s.setConfig(ConfigIters, iters)
}

// GetIterations retrieves the KDF iterations
func (s *Bolt) GetIterations() (uint32, error) {
	iters, err := s.getConfig(ConfigIters)
	if err != nil {
		return 0, err
	}
	if len(iters) != 4 {
		return 0, fmt.Errorf("iterations not found")
	}
	return binary.BigEndian.Uint32(iters), nil
}

// SetCheck stores the passphrase check value of a private vault
func (s *Bolt) SetCheck(check []byte) error {
	return s.setConfig(ConfigCheck, check)
}

// GetCheck retrieves the passphrase check value
func (s *Bolt) GetCheck() ([]byte, error) {
	return s.getConfig(ConfigCheck)
}

// UpdateModified updates the last modified timestamp
func (s *Bolt) UpdateModified() error {
	modified, _ := time.Now().MarshalBinary()
	return s.setConfig(ConfigModified, modified)
}

// GetModified retrieves the last modified timestamp
func (s *Bolt) GetModified() (time.Time, error) {
	var modified time.Time
	data, err := s.getConfig(ConfigModified)
	if err != nil {
		return modified, err
	}
	err = modified.UnmarshalBinary(data)
	return modified, err
}

// GetVaultID retrieves the vault ID from config bucket
func (s *Bolt) GetVaultID() (string, error) {
	data, err := s.getConfig(ConfigVaultID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetOrCreateVaultID retrieves existing vault ID or generates a new one
func (s *Bolt) GetOrCreateVaultID() (string, error) {
	vaultID, err := s.GetVaultID()
	if err == nil {
		return vaultID, nil
	}

	b, err := crypto.GenerateRandom(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate vault ID: %w", err)
	}
	vaultID = hex.EncodeToString(b)

	if err := s.setConfig(ConfigVaultID, []byte(vaultID)); err != nil {
		return "", err
	}
	return vaultID, nil
}

// PutEntry adds or replaces a named entry in the index
func (s *Bolt) PutEntry(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		return index.Put([]byte(entry.Name), data)
	})
}

// GetEntry returns a single entry, or nil if the name is not indexed
func (s *Bolt) GetEntry(name string) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		data := index.Get([]byte(name))
		if data == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	return entry, err
}

// RemoveEntry removes a named entry, reporting whether it existed.
// The entry's blocks stay in the blocks bucket.
func (s *Bolt) RemoveEntry(name string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		existed = index.Get([]byte(name)) != nil
		return index.Delete([]byte(name))
	})
	return existed, err
}

// Entries returns all index entries ordered by name
func (s *Bolt) Entries() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		return index.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// Get retrieves the block stored under ref
func (s *Bolt) Get(ctx context.Context, ref crypto.Reference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var block []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(BlocksBucket)
		if blocks == nil {
			return fmt.Errorf("blocks bucket not found")
		}
		data := blocks.Get(ref[:])
		if data == nil {
			return fmt.Errorf("get %s: %w", ref, ErrNotFound)
		}
		block = append([]byte(nil), data...)
		return nil
	})
	return block, err
}

// Put stores a block under ref. Concurrent calls are coalesced into
// shared write transactions.
func (s *Bolt) Put(ctx context.Context, ref crypto.Reference, block []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Batch(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(BlocksBucket)
		if blocks == nil {
			return fmt.Errorf("blocks bucket not found")
		}
		if blocks.Get(ref[:]) != nil {
			return nil
		}
		return blocks.Put(ref[:], block)
	})
}

// Has reports whether a block is stored under ref
func (s *Bolt) Has(ref crypto.Reference) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(BlocksBucket)
		if blocks == nil {
			return fmt.Errorf("blocks bucket not found")
		}
		found = blocks.Get(ref[:]) != nil
		return nil
	})
	return found, err
}

// BlockStats returns the number and total size of stored blocks
func (s *Bolt) BlockStats() (count int, size int64, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(BlocksBucket)
		if blocks == nil {
			return fmt.Errorf("blocks bucket not found")
		}
		return blocks.ForEach(func(_, v []byte) error {
			count++
			size += int64(len(v))
			return nil
		})
	})
	return count, size, err
}

// compactTxSize bounds the bytes copied per write transaction during Compact.
const compactTxSize = 64 << 20

// Compact rewrites the database file without the pages bbolt has freed.
// Blocks are never deleted, so blocks of removed entries stay in the file.
func (s *Bolt) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}
	if err := bolt.Compact(dst, s.db, compactTxSize); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// os.Rename replaces srcPath atomically
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Remove(tmpPath)
		if reopened, oerr := bolt.Open(srcPath, 0600, &bolt.Options{Timeout: time.Second}); oerr == nil {
			s.db = reopened
		}
		return fmt.Errorf("failed to replace database: %w", err)
	}

	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	return nil
}
