// Package checksum computes the SHA-256 digests recorded with stored logos and
// used to version their object keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Sum returns the hex SHA-256 of data
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Short returns the first n hex characters of Sum(data). n is clamped to the
// full digest length.
func Short(data []byte, n int) string {
	full := Sum(data)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}

// Writer hashes everything written to it, for use with io.MultiWriter when the
// body is streamed rather than buffered.
type Writer struct {
	h hash.Hash
}

// NewWriter returns an empty Writer
func NewWriter() *Writer {
	return &Writer{h: sha256.New()}
}

// Write never fails
func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Sum returns the hex digest of the bytes written so far
func (w *Writer) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}
