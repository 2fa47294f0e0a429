// Package search keeps an in-memory token index over file names and owners.
package search

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/fileshare/internal/server/models"
)

var separators = regexp.MustCompile(`[\s._-]+`)

// Tokenize lowercases name and splits it on whitespace, dots, underscores and dashes.
func Tokenize(name string) []string {
	parts := separators.Split(strings.ToLower(name), -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Index maps file ids to token and tag sets. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*models.SearchIndexEntry
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]*models.SearchIndexEntry)}
}

// Index replaces the entry for fileID with tokens from name plus the owner id.
// Previously added tags are dropped.
func (x *Index) Index(fileID, name, ownerID string) {
	tokens := make(map[string]struct{})
	for _, t := range Tokenize(name) {
		tokens[t] = struct{}{}
	}
	// The owner token is lowercased like name tokens so queries match it
	// case-insensitively.
	if owner := strings.ToLower(ownerID); owner != "" {
		tokens[owner] = struct{}{}
	}

	x.mu.Lock()
	x.entries[fileID] = &models.SearchIndexEntry{
		FileID: fileID,
		Tokens: tokens,
		Tags:   make(map[string]struct{}),
	}
	x.mu.Unlock()
}

// Remove drops the entry for fileID. Unknown ids are ignored.
func (x *Index) Remove(fileID string) {
	x.mu.Lock()
	delete(x.entries, fileID)
	x.mu.Unlock()
}

// AddTags attaches lowercase tags to an indexed file. It reports false if
// fileID is not indexed.
func (x *Index) AddTags(fileID string, tags ...string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	e, ok := x.entries[fileID]
	if !ok {
		return false
	}
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			e.Tags[t] = struct{}{}
		}
	}
	return true
}

// Query returns ids of files with at least one token containing text,
// case-insensitively. An empty text matches every entry.
func (x *Index) Query(text string) []string {
	q := strings.ToLower(text)

	x.mu.RLock()
	defer x.mu.RUnlock()

	var ids []string
	for id, e := range x.entries {
		for t := range e.Tokens {
			if strings.Contains(t, q) {
				ids = append(ids, id)
				break
			}
		}
	}
	slices.Sort(ids)
	return ids
}

// QueryTag returns ids of files carrying exactly the given tag.
func (x *Index) QueryTag(tag string) []string {
	tag = strings.ToLower(strings.TrimSpace(tag))

	x.mu.RLock()
	defer x.mu.RUnlock()

	var ids []string
	for id, e := range x.entries {
		if _, ok := e.Tags[tag]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Entry returns a copy of the indexed entry for fileID.
func (x *Index) Entry(fileID string) (models.SearchIndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	e, ok := x.entries[fileID]
	if !ok {
		return models.SearchIndexEntry{}, false
	}
	cp := models.SearchIndexEntry{
		FileID: e.FileID,
		Tokens: make(map[string]struct{}, len(e.Tokens)),
		Tags:   make(map[string]struct{}, len(e.Tags)),
	}
	for t := range e.Tokens {
		cp.Tokens[t] = struct{}{}
	}
	for t := range e.Tags {
		cp.Tags[t] = struct{}{}
	}
	return cp, true
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
