// Package session tracks the active conversational flow of each user. A
// user has at most one active flow per role: one report conversation as a
// reporter, one review conversation as a moderator. Flows are owned
// exclusively by the registry and removed when they reach a terminal
// state.
package session

import (
	"context"
	"sync"
)

// Role distinguishes the two conversation kinds a user can drive.
type Role int

const (
	// RoleReporter is the flagging party walking through a report.
	RoleReporter Role = iota
	// RoleModerator is the reviewing party walking through pending cases.
	RoleModerator
)

func (r Role) String() string {
	if r == RoleModerator {
		return "moderator"
	}
	return "reporter"
}

// Flow is one in-progress conversation. Handle consumes one user input
// and returns the replies to send back; Done reports whether the flow
// reached a terminal state.
type Flow interface {
	Handle(ctx context.Context, input string) []string
	Done() bool
}

type key struct {
	userID string
	role   Role
}

// Registry is the process-wide map from user identity to active flow.
type Registry struct {
	mu     sync.Mutex
	active map[key]Flow
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[key]Flow)}
}

// Get returns the user's active flow for the role, if any.
func (r *Registry) Get(userID string, role Role) (Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.active[key{userID, role}]
	return f, ok
}

// Put registers a flow for the user and role. Returns false without
// replacing anything if the user already has an active flow in that role.
func (r *Registry) Put(userID string, role Role, f Flow) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{userID, role}
	if _, exists := r.active[k]; exists {
		return false
	}
	r.active[k] = f
	return true
}

// Remove drops the user's flow for the role, if present.
func (r *Registry) Remove(userID string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key{userID, role})
}

// Len returns the number of active flows across all users and roles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
