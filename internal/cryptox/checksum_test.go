package cryptox

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU="},
		{"hello", []byte("hello"), "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Checksum(tt.data)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 44)
		})
	}
}

func TestVerifyChecksum(t *testing.T) {
	data := []byte("payload")
	sum := Checksum(data)

	assert.True(t, VerifyChecksum(data, sum))
	assert.False(t, VerifyChecksum([]byte("payloaD"), sum))
	assert.False(t, VerifyChecksum(data, ""))
	assert.False(t, VerifyChecksum(data, sum[:len(sum)-1]))
}

func TestChecksumReader(t *testing.T) {
	data := []byte("streamed payload")
	cr := NewChecksumReader(iotest.OneByteReader(bytes.NewReader(data)))

	got, err := io.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, Checksum(data), cr.Sum())
	assert.Equal(t, int64(len(data)), cr.N())
}

func TestChecksumReader_Empty(t *testing.T) {
	cr := NewChecksumReader(bytes.NewReader(nil))
	_, err := io.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, Checksum(nil), cr.Sum())
	assert.Zero(t, cr.N())
}
