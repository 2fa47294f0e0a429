package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"io"
)

// Checksum returns the standard base64 encoding of the SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data hashes to expected, comparing in constant time.
func VerifyChecksum(data []byte, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(Checksum(data)), []byte(expected)) == 1
}

// ChecksumReader hashes everything read through it.
type ChecksumReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r, h: sha256.New()}
}

func (c *ChecksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

// Sum returns the checksum of the bytes read so far, encoded like Checksum.
func (c *ChecksumReader) Sum() string {
	return base64.StdEncoding.EncodeToString(c.h.Sum(nil))
}

// N returns the number of bytes read so far.
func (c *ChecksumReader) N() int64 {
	return c.n
}
