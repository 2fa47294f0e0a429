// Package models defines the file store's persisted entities.
package models

import "time"

type FileStatus string

const (
	FileStatusActive  FileStatus = "active"
	FileStatusDeleted FileStatus = "deleted"
	// FileStatusArchived is stored and reported but no operation sets it yet.
	FileStatusArchived FileStatus = "archived"
)

func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusActive, FileStatusDeleted, FileStatusArchived:
		return true
	}
	return false
}

// File is the descriptor of a stored file. OwnerID and ID never change after
// creation; Deleted is terminal.
type File struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Size      int64      `json:"size"`
	Checksum  string     `json:"checksum"`
	Status    FileStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Touch moves UpdatedAt forward to now, never backwards.
func (f *File) Touch(now time.Time) {
	if now.After(f.UpdatedAt) {
		f.UpdatedAt = now
	}
}

func (f *File) IsDeleted() bool {
	return f.Status == FileStatusDeleted
}
