// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package chat

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
)

// Errors returned by MessageStore.Add.
var (
	// ErrDuplicateMessageID is returned when a message with an already
	// stored id is added.
	// A duplicate insert is a protocol handling bug and must surface, not
	// silently corrupt ordering.
	ErrDuplicateMessageID = errors.New("chat: duplicate message id")

	// ErrEmptyMessageID is returned when a message without an id is added.
	ErrEmptyMessageID = errors.New("chat: message id must not be empty")
)

// Direction tells whether a message was received or sent by the current
// user.
type Direction uint8

const (
	// DirectionIn marks a message addressed to the current user.
	DirectionIn Direction = iota

	// DirectionOut marks a message authored by the current user, including
	// echoes and carbon copies of it.
	DirectionOut
)

// String returns "in" or "out".
func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// MessageState is the optional delivery state of an outbound message.
type MessageState uint8

const (
	// StateUnknown means no delivery information is available.
	StateUnknown MessageState = iota

	// StateSending means the message was handed to the transport.
	StateSending

	// StateSent means the server accepted the message.
	StateSent

	// StateRecipientReceived means the recipient's client received the
	// message.
	StateRecipientReceived

	// StateRecipientSeen means the recipient displayed the message.
	StateRecipientSeen
)

// Message is one normalized chat message in a recipient's timeline.
type Message struct {
	ID        string
	Direction Direction
	Body      string
	Time      time.Time

	// Delayed is set when the message carried a delayed-delivery stamp.
	Delayed bool

	// FromArchive is set when the message was loaded from the server side
	// archive rather than received live.
	FromArchive bool

	State MessageState
}

// Recipient is a message destination: a Contact or a Room.
type Recipient interface {
	// RecipientJID is the bare address messages for this recipient are sent
	// to.
	RecipientJID() jid.JID

	// Messages is the recipient's timeline.
	Messages() *MessageStore
}

// MessageStore is the append-only, datetime-ordered message timeline of one
// recipient.
// It lives exactly as long as its owning Contact or Room and is never
// pruned.
type MessageStore struct {
	mu       sync.Mutex
	messages []Message
	ids      map[string]struct{}
	added    *obs.Stream[Message]
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		ids:   make(map[string]struct{}),
		added: obs.NewStream[Message](),
	}
}

// Add inserts a message at its datetime-sorted position.
// Live traffic arriving in order is appended directly; archive backfill with
// an older timestamp is inserted at the position found by binary search.
// Adding a message whose id is already present fails with
// ErrDuplicateMessageID and leaves the store unchanged.
func (s *MessageStore) Add(m Message) error {
	if m.ID == "" {
		return ErrEmptyMessageID
	}
	s.mu.Lock()
	if _, seen := s.ids[m.ID]; seen {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateMessageID, m.ID)
	}
	s.ids[m.ID] = struct{}{}

	n := len(s.messages)
	if n == 0 || !m.Time.Before(s.messages[n-1].Time) {
		s.messages = append(s.messages, m)
	} else {
		i := sort.Search(n, func(i int) bool {
			return s.messages[i].Time.After(m.Time)
		})
		s.messages = append(s.messages, Message{})
		copy(s.messages[i+1:], s.messages[i:])
		s.messages[i] = m
	}
	s.mu.Unlock()

	s.added.Publish(m)
	return nil
}

// Contains reports whether a message with the given id was already added.
func (s *MessageStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Messages returns a copy of the timeline in ascending datetime order.
func (s *MessageStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// First returns the oldest message.
func (s *MessageStore) First() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[0], true
}

// Last returns the newest message.
func (s *MessageStore) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Added is the stream of messages in insertion order, published after each
// successful Add.
func (s *MessageStore) Added() *obs.Stream[Message] {
	return s.added
}
