package verify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a verification artifact to the action it unlocks.
type Purpose string

const (
	PurposeTask Purpose = "task"
)

// Artifact is a short-lived proof of identity verification (e.g. a face-match
// result) required before sensitive actions.
type Artifact struct {
	SessionID  string
	Purpose    Purpose
	MatchScore *float64
	VerifiedAt time.Time
}

// Store holds verification artifacts in memory, one per purpose, each valid
// for a fixed TTL from the moment it was recorded.
type Store struct {
	mu        sync.Mutex
	ttl       time.Duration
	artifacts map[Purpose]Artifact
	now       func() time.Time
}

// NewStore creates a verification artifact store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:       ttl,
		artifacts: make(map[Purpose]Artifact),
		now:       time.Now,
	}
}

// Record stores a fresh artifact for the purpose and returns it. A new
// verification session id is generated for each recording; it is later stamped
// onto photo uploads performed under this artifact.
func (s *Store) Record(purpose Purpose, matchScore *float64) Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	art := Artifact{
		SessionID:  uuid.NewString(),
		Purpose:    purpose,
		MatchScore: matchScore,
		VerifiedAt: s.now(),
	}
	s.artifacts[purpose] = art
	return art
}

// Valid returns the artifact for the purpose if one exists and has not
// expired.
func (s *Store) Valid(purpose Purpose) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	art, ok := s.artifacts[purpose]
	if !ok {
		return Artifact{}, false
	}
	if s.now().Sub(art.VerifiedAt) > s.ttl {
		delete(s.artifacts, purpose)
		return Artifact{}, false
	}
	return art, true
}

// Invalidate drops the artifact for the purpose, if any.
func (s *Store) Invalidate(purpose Purpose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, purpose)
}
