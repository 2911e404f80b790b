package eris

import "fmt"

const padMarker = 0x80

// pad writes the padding marker after the first n bytes of block
// and zeroes the rest of it.
func pad(block []byte, n int) {
	block[n] = padMarker
	clear(block[n+1:])
}

// unpad strips the marker and the zeros following it.
func unpad(data []byte) ([]byte, error) {
	i := len(data) - 1
	for i >= 0 && data[i] == 0 {
		i--
	}
	if i < 0 || data[i] != padMarker {
		return nil, fmt.Errorf("%w: padding marker not found", ErrMalformedBlock)
	}
	return data[:i], nil
}
