// Package signature collapses structurally identical definitions.
//
// Two definitions are considered duplicates when they share a name and
// whitespace-stripped body. The first occurrence seen becomes the
// representative; later occurrences only increment the group count.
package signature

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sync"

	"github.com/voyantlabs/codectx/internal/models"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize strips all whitespace from code so formatting differences
// do not defeat duplicate detection
func Normalize(code string) string {
	if code == "" {
		return ""
	}
	return whitespaceRE.ReplaceAllString(code, "")
}

// Compute returns the hex SHA-1 digest of name + "|" + normalized code
func Compute(name, code string) string {
	h := sha1.Sum([]byte(name + "|" + Normalize(code)))
	return hex.EncodeToString(h[:])
}

type group struct {
	representative models.Entity
	count          int
}

// Store tracks duplicate groups for one repository index
type Store struct {
	mu     sync.RWMutex
	groups map[string]*group
}

// NewStore creates an empty signature store
func NewStore() *Store {
	return &Store{
		groups: make(map[string]*group),
	}
}

// Add registers an entity under its signature. The first entity added
// for a signature becomes the group representative. Returns the
// signature and whether the entity duplicated an existing group.
func (s *Store) Add(e models.Entity) (string, bool) {
	sig := Compute(e.Name, e.Code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[sig]; ok {
		g.count++
		return sig, true
	}

	s.groups[sig] = &group{representative: e, count: 1}
	return sig, false
}

// Count returns how many entities share the signature
func (s *Store) Count(sig string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.groups[sig]; ok {
		return g.count
	}
	return 0
}

// Representative returns the first entity registered for the signature
func (s *Store) Representative(sig string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.groups[sig]; ok {
		return g.representative, true
	}
	return models.Entity{}, false
}

// IsRepresentative reports whether the entity is its group's representative.
// Unknown signatures report true so callers never drop unseen entities.
func (s *Store) IsRepresentative(sig, entityID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[sig]
	if !ok {
		return true
	}
	return g.representative.ID == entityID
}

// Len returns the number of distinct signatures
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

// Snapshot exports the persisted form: signature to occurrence count
// and signature to representative entity id.
func (s *Store) Snapshot() (map[string]int, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.groups))
	reps := make(map[string]string, len(s.groups))
	for sig, g := range s.groups {
		counts[sig] = g.count
		reps[sig] = g.representative.ID
	}
	return counts, reps
}

// Restore rebuilds the store from persisted metadata. Representatives
// come back as id-only stubs, which is all dedup decisions need.
func (s *Store) Restore(counts map[string]int, reps map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = make(map[string]*group, len(counts))
	for sig, count := range counts {
		s.groups[sig] = &group{
			representative: models.Entity{ID: reps[sig]},
			count:          count,
		}
	}
}
