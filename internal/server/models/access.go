package models

import "time"

type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// AccessGrant maps users to their permission on a single file.
// File access is currently owner-only and nothing consults grants.
// Not safe for concurrent use.
type AccessGrant struct {
	FileID    string                `json:"file_id"`
	Grants    map[string]Permission `json:"grants"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func NewAccessGrant(fileID string, now time.Time) *AccessGrant {
	return &AccessGrant{
		FileID:    fileID,
		Grants:    make(map[string]Permission),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (g *AccessGrant) Grant(userID string, p Permission, now time.Time) {
	if g.Grants == nil {
		g.Grants = make(map[string]Permission)
	}
	g.Grants[userID] = p
	g.UpdatedAt = now
}

func (g *AccessGrant) Revoke(userID string, now time.Time) {
	if _, ok := g.Grants[userID]; !ok {
		return
	}
	delete(g.Grants, userID)
	g.UpdatedAt = now
}

func (g *AccessGrant) HasAccess(userID string) bool {
	_, ok := g.Grants[userID]
	return ok
}

func (g *AccessGrant) Permission(userID string) (Permission, bool) {
	p, ok := g.Grants[userID]
	return p, ok
}
