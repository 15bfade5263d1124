package casestore

import (
	"container/heap"
	"sync"

	"github.com/modbot/triage/internal/platform"
)

// Store owns the case map and the pending queue. Every read-modify-write
// is one critical section: a case can never exist in one structure and
// not the other, and no two concurrent reports or pops interleave
// partially. Scoring happens before AddReport is called, so the lock is
// never held across collaborator I/O.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	queue   caseHeap
	nextSeq uint64
}

// NewStore creates an empty case store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// AddReport records a report against the referenced message. If a case for
// the message already exists the report merges into it (scores take the
// per-attribute maximum, the reporter set dedupes, the count always
// increments); otherwise a new case is created from the snapshot. Returns
// a copy of the merged case.
func (s *Store) AddReport(ref platform.MessageRef, snap *platform.Message, scores map[string]float64, reporter, note string) Case {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ref.Key()
	e, ok := s.entries[key]
	if !ok {
		c := &Case{
			Ref:    ref,
			Scores: make(map[string]float64),
			seq:    s.nextSeq,
		}
		s.nextSeq++
		if snap != nil {
			c.AuthorID = snap.AuthorID
			c.AuthorName = snap.AuthorName
			c.Content = snap.Content
			c.ImageURL = snap.ImageURL
		}
		e = &entry{c: c}
		s.entries[key] = e
		heap.Push(&s.queue, e)
	}

	e.c.merge(scores, reporter, note)
	heap.Fix(&s.queue, e.index)
	return e.c.clone()
}

// Peek returns a copy of the highest-priority pending case without
// removing it.
func (s *Store) Peek() (Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Case{}, false
	}
	return s.queue[0].c.clone(), true
}

// Pop removes the highest-priority case from both the queue and the map
// as one atomic step and returns a copy of it.
func (s *Store) Pop() (Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Case{}, false
	}
	e := heap.Pop(&s.queue).(*entry)
	delete(s.entries, e.c.Ref.Key())
	return e.c.clone(), true
}

// Remove removes the case with the given key from both structures
// atomically. Used by the review flow, which captured the case at peek
// time and must not pop a different case that overtook it meanwhile.
func (s *Store) Remove(key string) (Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Case{}, false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.entries, key)
	return e.c.clone(), true
}

// Get returns a copy of the case with the given key, if present.
func (s *Store) Get(key string) (Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Case{}, false
	}
	return e.c.clone(), true
}

// Len returns the number of pending cases.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
