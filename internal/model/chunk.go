package model

import "fmt"

// ContentKind classifies a chunk's payload. The set is closed; anything
// outside it is rejected at ingestion time.
type ContentKind string

const (
	KindText   ContentKind = "text"
	KindTable  ContentKind = "table"
	KindFigure ContentKind = "figure"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindTable, KindFigure:
		return true
	}
	return false
}

func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown content kind: %q", s)
	}
	return k, nil
}

// ChunkMetadata describes where a chunk came from inside its source document.
type ChunkMetadata struct {
	Source string      `json:"source"`
	Page   string      `json:"page,omitempty"`
	Kind   ContentKind `json:"kind"`
}

// Chunk is the smallest retrievable unit. Index is the chunk's position
// within its session and never changes once assigned. Chunks are immutable
// after creation and never shared across sessions.
type Chunk struct {
	Index    int           `json:"index"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// IncomingChunk is what the upstream parsing stage hands us: extracted text
// plus metadata, no index and no vector yet.
type IncomingChunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a retrieval result: a stored chunk plus its similarity
// score against the query.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// ExportRecord is one line of a bulk export stream.
type ExportRecord struct {
	SessionID  string        `json:"session_id"`
	ChunkIndex int           `json:"chunk_index"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	Vector     []float32     `json:"vector,omitempty"`
}
