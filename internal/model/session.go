package model

import "time"

// SessionInfo is the inspection view of a session.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	ChunkCount   int       `json:"chunk_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessAt time.Time `json:"last_access_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
