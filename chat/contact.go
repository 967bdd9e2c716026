// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package chat

import (
	"sync"

	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
)

// Contact is one entry per bare JID the client has any relation to: a roster
// entry, a message correspondent, or an administrative target.
// Contacts are created lazily on first reference and never destroyed; losing
// a roster entry only moves the subscription back to none.
type Contact struct {
	addr jid.JID

	// Name is the roster display name, possibly empty.
	Name string

	// Avatar is an opaque avatar URL, possibly empty.
	Avatar string

	subscription *obs.Value[ContactSubscription]
	presence     *obs.Value[Presence]
	messages     *MessageStore

	mu            sync.Mutex
	resources     map[string]Presence
	pendingInvite *RoomInvitation
	pendingIn     bool
	pendingOut    bool
}

// NewContact creates a contact for the bare form of addr.
func NewContact(addr jid.JID, name string) *Contact {
	return &Contact{
		addr:         addr.Bare(),
		Name:         name,
		subscription: obs.NewValue(SubscriptionNone),
		presence:     obs.NewValue(PresenceUnavailable),
		messages:     NewMessageStore(),
		resources:    make(map[string]Presence),
	}
}

// JID returns the contact's bare address.
func (c *Contact) JID() jid.JID {
	return c.addr
}

// RecipientJID satisfies Recipient.
func (c *Contact) RecipientJID() jid.JID {
	return c.addr
}

// EqualsJID reports whether the contact represents the bare form of other.
// Two addresses differing only in their resourcepart compare equal.
func (c *Contact) EqualsJID(other jid.JID) bool {
	return c.addr.Equal(other.Bare())
}

// Messages satisfies Recipient.
func (c *Contact) Messages() *MessageStore {
	return c.messages
}

// Subscription is the reactive roster subscription state.
func (c *Contact) Subscription() *obs.Value[ContactSubscription] {
	return c.subscription
}

// Presence is the reactive overall presence reduced over all connected
// resources.
func (c *Contact) Presence() *obs.Value[Presence] {
	return c.presence
}

// UpdateResource records the presence of one resource and recomputes the
// overall presence.
// An unavailable resource is removed from the resource map.
func (c *Contact) UpdateResource(resource string, p Presence) {
	c.mu.Lock()
	if p == PresenceUnavailable {
		delete(c.resources, resource)
	} else {
		c.resources[resource] = p
	}
	overall := ReducePresence(c.resources)
	c.mu.Unlock()

	if overall != c.presence.Get() {
		c.presence.Set(overall)
	}
}

// Resources returns a copy of the per-resource presence map.
func (c *Contact) Resources() map[string]Presence {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Presence, len(c.resources))
	for r, p := range c.resources {
		out[r] = p
	}
	return out
}

// ClearResources drops all known resources, e.g. when the connection is
// lost and presence information becomes stale.
func (c *Contact) ClearResources() {
	c.mu.Lock()
	c.resources = make(map[string]Presence)
	c.mu.Unlock()
	if c.presence.Get() != PresenceUnavailable {
		c.presence.Set(PresenceUnavailable)
	}
}

// SetPendingIn records whether the contact has an unanswered subscription
// request towards the current user.
func (c *Contact) SetPendingIn(pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingIn = pending
}

// PendingIn reports whether the contact has an unanswered subscription
// request towards the current user.
func (c *Contact) PendingIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingIn
}

// SetPendingOut records whether the current user has an unanswered
// subscription request towards the contact.
func (c *Contact) SetPendingOut(pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingOut = pending
}

// PendingOut reports whether the current user has an unanswered
// subscription request towards the contact.
func (c *Contact) PendingOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingOut
}

// SetPendingRoomInvitation records an unanswered room invitation from this
// contact, or clears it when inv is nil.
func (c *Contact) SetPendingRoomInvitation(inv *RoomInvitation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingInvite = inv
}

// PendingRoomInvitation returns the unanswered room invitation, if any.
func (c *Contact) PendingRoomInvitation() *RoomInvitation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingInvite
}
