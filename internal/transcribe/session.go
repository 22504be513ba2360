// Package transcribe provides the transcript source collaborators: a
// per-encounter session accumulator and an optional batch audio
// transcription client.
package transcribe

import (
	"strings"
	"sync"
)

// SessionTranscriber accumulates transcript text per encounter session.
type SessionTranscriber interface {
	StartSession(encounterID string)
	IngestChunk(encounterID, chunk string)
	Transcript(encounterID string) string
}

// MemoryTranscriber is the in-process session transcriber. Real-time
// speech-to-text happens upstream; this only assembles chunks.
type MemoryTranscriber struct {
	mu       sync.RWMutex
	sessions map[string][]string
}

// NewMemoryTranscriber creates an empty session transcriber.
func NewMemoryTranscriber() *MemoryTranscriber {
	return &MemoryTranscriber{sessions: make(map[string][]string)}
}

// StartSession resets the session for an encounter.
func (t *MemoryTranscriber) StartSession(encounterID string) {
	t.mu.Lock()
	t.sessions[encounterID] = []string{}
	t.mu.Unlock()
}

// IngestChunk appends a chunk to the session.
func (t *MemoryTranscriber) IngestChunk(encounterID, chunk string) {
	t.mu.Lock()
	t.sessions[encounterID] = append(t.sessions[encounterID], chunk)
	t.mu.Unlock()
}

// Transcript joins all session chunks with spaces.
func (t *MemoryTranscriber) Transcript(encounterID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return strings.Join(t.sessions[encounterID], " ")
}

var _ SessionTranscriber = (*MemoryTranscriber)(nil)
