package models

import "time"

// FileVersion is one encrypted revision of a file. Version numbers start at 1
// and are contiguous per file.
type FileVersion struct {
	ID      string `json:"id"`
	FileID  string `json:"file_id"`
	Version int    `json:"version"`
	// BlobRef is the blob store key of nonce||ciphertext||tag.
	BlobRef   string    `json:"-"`
	KeyID     string    `json:"key_id"`
	Nonce     []byte    `json:"-"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
