/*
Package base32 implements the unpadded base32 encoding used in capability URNs.

It uses the standard RFC 4648 alphabet but strips every trailing '=' when
encoding and restores the padding before decoding, which keeps URNs short
and free of characters that need escaping.
*/
package base32

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is wrapped by every error returned from DecodeString.
var ErrDecode = errors.New("decode base32")

// DecodeError reports malformed base32 input.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode base32 %q: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// EncodedLen returns the length of the unpadded encoding of n bytes.
func EncodedLen(n int) int {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodedLen(n)
}

// EncodeToString returns the unpadded base32 encoding of src.
func EncodeToString(src []byte) string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(src), "=")
}

// DecodeString returns the bytes represented by the unpadded base32 string s.
// Only the characters A-Z and 2-7 are accepted, and the unused trailing bits
// must be zero, so every byte string has exactly one accepted encoding.
func DecodeString(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if c := s[i]; (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return nil, &DecodeError{Input: s, Err: base32.CorruptInputError(i)}
		}
	}
	padded := s
	if rem := len(s) % 8; rem != 0 {
		switch rem {
		case 1, 3, 6:
			return nil, &DecodeError{Input: s, Err: fmt.Errorf("invalid length %d", len(s))}
		}
		padded += strings.Repeat("=", 8-rem)
	}
	b, err := base32.StdEncoding.DecodeString(padded)
	if err != nil {
		return nil, &DecodeError{Input: s, Err: err}
	}
	if EncodeToString(b) != s {
		return nil, &DecodeError{Input: s, Err: errors.New("non-zero trailing bits")}
	}
	return b, nil
}
