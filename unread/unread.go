// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package unread derives unread message counts per recipient.
//
// A recipient is "open" while at least one view of it is mounted; inbound
// live messages arriving while a recipient is not open increment its count,
// and opening a recipient resets it.
package unread

import (
	"sync"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
)

// Service tracks unread counts across observed recipients.
type Service struct {
	mu      sync.Mutex
	open    map[string]int
	counts  map[string]int
	cancels map[string]func()

	countsV *obs.Value[map[string]int]
	totalV  *obs.Value[int]
}

// New returns an empty unread tracker.
func New() *Service {
	return &Service{
		open:    make(map[string]int),
		counts:  make(map[string]int),
		cancels: make(map[string]func()),
		countsV: obs.NewValue(map[string]int{}),
		totalV:  obs.NewValue(0),
	}
}

// Counts is the reactive map of recipient bare JID to unread count.
// Recipients without unread messages are absent.
func (s *Service) Counts() *obs.Value[map[string]int] { return s.countsV }

// Total is the reactive sum of all unread counts.
func (s *Service) Total() *obs.Value[int] { return s.totalV }

// Observe starts counting for the recipient's timeline.
// Observing an already observed recipient is a no-op.
func (s *Service) Observe(r chat.Recipient) {
	key := r.RecipientJID().String()
	s.mu.Lock()
	if _, ok := s.cancels[key]; ok {
		s.mu.Unlock()
		return
	}
	cancel := r.Messages().Added().Subscribe(func(m chat.Message) {
		if m.Direction != chat.DirectionIn || m.FromArchive {
			return
		}
		s.mu.Lock()
		if s.open[key] == 0 {
			s.counts[key]++
		}
		s.mu.Unlock()
		s.publish()
	})
	s.cancels[key] = cancel
	s.mu.Unlock()
}

// Open marks one view of the recipient as mounted and resets its count.
// The returned function unmounts the view; the recipient counts as open
// until the last mounted view closed.
func (s *Service) Open(r chat.Recipient) (done func()) {
	key := r.RecipientJID().String()
	s.Observe(r)

	s.mu.Lock()
	s.open[key]++
	s.counts[key] = 0
	s.mu.Unlock()
	s.publish()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.open[key]--
			if s.open[key] <= 0 {
				delete(s.open, key)
			}
			s.mu.Unlock()
		})
	}
}

// Count returns the recipient's current unread count.
func (s *Service) Count(r chat.Recipient) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[r.RecipientJID().String()]
}

// Reset clears all counts and stops observing, e.g. on logout.
func (s *Service) Reset() {
	s.mu.Lock()
	cancels := s.cancels
	s.open = make(map[string]int)
	s.counts = make(map[string]int)
	s.cancels = make(map[string]func())
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	s.publish()
}

func (s *Service) publish() {
	s.mu.Lock()
	out := make(map[string]int, len(s.counts))
	total := 0
	for key, n := range s.counts {
		if n > 0 {
			out[key] = n
			total += n
		}
	}
	s.mu.Unlock()
	s.countsV.Set(out)
	s.totalV.Set(total)
}
