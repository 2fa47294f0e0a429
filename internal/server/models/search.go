package models

// SearchIndexEntry holds the lowercase tokens and the tags indexed for one file.
type SearchIndexEntry struct {
	FileID string
	Tokens map[string]struct{}
	Tags   map[string]struct{}
}
