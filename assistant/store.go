package assistant

import (
	"errors"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// ErrConversationNotFound is returned when an id is unknown or has expired.
var ErrConversationNotFound = errors.New("conversation not found")

// DefaultConversationTTL is how long an idle conversation is kept.
const DefaultConversationTTL = 30 * time.Minute

// Store keeps live conversations in memory; each access extends the idle TTL.
type Store struct {
	items *cache.Cache
	ttl   time.Duration
}

// NewStore returns a store expiring conversations after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	return &Store{items: cache.New(ttl, ttl/2), ttl: ttl}
}

// Start creates and stores a new conversation with a random id.
func (s *Store) Start() *Conversation {
	c := NewConversation(uuid.NewString())
	s.items.Set(c.ID, c, s.ttl)
	return c
}

// Get returns the conversation and refreshes its TTL.
func (s *Store) Get(id string) (*Conversation, error) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, ErrConversationNotFound
	}
	c := v.(*Conversation)
	s.items.Set(id, c, s.ttl)
	return c, nil
}

func (s *Store) Delete(id string) {
	s.items.Delete(id)
}

// Len counts stored conversations, including expired ones not yet purged.
func (s *Store) Len() int {
	return s.items.ItemCount()
}
