package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// RandIntInRange returns a uniformly distributed random integer in
// [min, max] inclusive, drawn from crypto/rand.
func RandIntInRange(min, max int) (int, error) {
	if max < min {
		return 0, fmt.Errorf("%w: max %d < min %d", ErrInvalidInput, max, min)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(n.Int64()), nil
}

// MakeRandHexString generates a random hexadecimal string from size random
// bytes. The resulting string is twice as long as size, since every byte
// encodes as two hex characters.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of the provided byte slice with
// zeros. Useful for removing raw credentials from memory after hashing.
// A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
