package service

import (
	"sort"
	"sync"
)

// PresenceRegistry tracks live connections per user and typing indicators per
// conversation, entirely in memory. One mutex guards both maps so connect and
// disconnect transitions for a user are linearized: exactly one caller
// observes the first connection and exactly one observes the last disconnect.
type PresenceRegistry struct {
	mu                   sync.RWMutex
	connectionsByUser    map[uint]map[string]struct{}
	typingByConversation map[uint]map[uint]struct{}
}

// NewPresenceRegistry constructs an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		connectionsByUser:    make(map[uint]map[string]struct{}),
		typingByConversation: make(map[uint]map[uint]struct{}),
	}
}

// Connect records a connection and reports whether it is the user's first.
func (r *PresenceRegistry) Connect(userID uint, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.connectionsByUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.connectionsByUser[userID] = conns
	}
	conns[connID] = struct{}{}
	return len(conns) == 1
}

// Disconnect removes a connection and reports whether it was the user's last.
// On the last disconnect the user is also cleared from every typing set, and
// the affected conversation ids are returned so stop-typing events can fan
// out. Removal and the last-connection decision happen under one lock.
func (r *PresenceRegistry) Disconnect(userID uint, connID string) (last bool, clearedConversations []uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.connectionsByUser[userID]
	if !ok {
		return false, nil
	}
	if _, ok := conns[connID]; !ok {
		return false, nil
	}
	delete(conns, connID)
	if len(conns) > 0 {
		return false, nil
	}
	delete(r.connectionsByUser, userID)

	for conversationID, users := range r.typingByConversation {
		if _, ok := users[userID]; !ok {
			continue
		}
		delete(users, userID)
		if len(users) == 0 {
			delete(r.typingByConversation, conversationID)
		}
		clearedConversations = append(clearedConversations, conversationID)
	}
	sort.Slice(clearedConversations, func(i, j int) bool {
		return clearedConversations[i] < clearedConversations[j]
	})
	return true, clearedConversations
}

// Connections returns the number of live connections for a user.
func (r *PresenceRegistry) Connections(userID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connectionsByUser[userID])
}

// IsOnline reports whether the user has at least one live connection.
func (r *PresenceRegistry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connectionsByUser[userID]) > 0
}

// OnlineUsers returns every user with at least one live connection.
func (r *PresenceRegistry) OnlineUsers() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uint, 0, len(r.connectionsByUser))
	for userID := range r.connectionsByUser {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// OnlineMembers filters ids down to those currently online.
func (r *PresenceRegistry) OnlineMembers(ids []uint) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]uint, 0, len(ids))
	for _, id := range ids {
		if len(r.connectionsByUser[id]) > 0 {
			online = append(online, id)
		}
	}
	return online
}

// StartTyping adds the user to a conversation's typing set, reporting whether
// the set changed.
func (r *PresenceRegistry) StartTyping(conversationID, userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.typingByConversation[conversationID]
	if !ok {
		users = make(map[uint]struct{})
		r.typingByConversation[conversationID] = users
	}
	if _, ok := users[userID]; ok {
		return false
	}
	users[userID] = struct{}{}
	return true
}

// StopTyping removes the user from a conversation's typing set, reporting
// whether the set changed. Empty sets are pruned.
func (r *PresenceRegistry) StopTyping(conversationID, userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.typingByConversation[conversationID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(r.typingByConversation, conversationID)
	}
	return true
}

// TypingUsers returns the users currently typing in a conversation.
func (r *PresenceRegistry) TypingUsers(conversationID uint) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uint, 0, len(r.typingByConversation[conversationID]))
	for userID := range r.typingByConversation[conversationID] {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
