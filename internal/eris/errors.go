package eris

import (
	"errors"
	"fmt"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/storage"
)

var (
	ErrNotFound            = storage.ErrNotFound
	ErrIntegrity           = errors.New("block does not match its reference")
	ErrMalformedBlock      = errors.New("malformed block")
	ErrMalformedCapability = errors.New("malformed read capability")
	ErrInvalidBlockSize    = errors.New("invalid block size")
	ErrEncoderClosed       = errors.New("encoder closed")
)

// BlockError records which block of a tree failed and why.
type BlockError struct {
	Reference crypto.Reference
	Level     int
	Err       error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %s at level %d: %v", e.Reference, e.Level, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
