// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package roster

import (
	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// Occupant presence belongs to the room plugin, not the roster.
const nsMUCUser = "http://jabber.org/protocol/muc#user"

// AcceptSubscription approves an inbound subscription request from the bare
// form of addr.
func (p *Plugin) AcceptSubscription(addr jid.JID) error {
	if err := p.conn.Send(stanza.NewPresence(stanza.SubscribedPresence, addr.Bare())); err != nil {
		return err
	}
	c := p.GetOrCreateContact(addr, "")
	c.Subscription().Set(c.Subscription().Get().WithFrom())
	c.SetPendingIn(false)
	p.refresh()
	return nil
}

// DenySubscription declines an inbound subscription request from the bare
// form of addr.
func (p *Plugin) DenySubscription(addr jid.JID) error {
	if err := p.conn.Send(stanza.NewPresence(stanza.UnsubscribedPresence, addr.Bare())); err != nil {
		return err
	}
	if c, ok := p.Contact(addr); ok {
		c.SetPendingIn(false)
		p.refresh()
	}
	return nil
}

// handlePresence folds inbound presence into the contact set: availability
// per resource, and the four subscription change types.
// Occupant presence carrying a muc#user payload is left to the room plugin.
func (p *Plugin) handlePresence(el *stanza.Element) (bool, error) {
	if el.HasChildNS(nsMUCUser, "x") {
		return false, nil
	}
	from, err := jid.Parse(el.Attribute("from"))
	if err != nil {
		p.logger.Warn("presence with malformed from", "from", el.Attribute("from"), "error", err)
		return true, nil
	}

	switch stanza.PresenceType(el.Type()) {
	case stanza.AvailablePresence:
		c := p.GetOrCreateContact(from, "")
		c.UpdateResource(from.Resourcepart, chat.PresenceFromShow(true, el.ChildText("show")))
		return true, nil

	case stanza.UnavailablePresence:
		if c, ok := p.Contact(from); ok {
			c.UpdateResource(from.Resourcepart, chat.PresenceUnavailable)
		}
		return true, nil

	case stanza.SubscribePresence:
		c := p.GetOrCreateContact(from, "")
		switch c.Subscription().Get() {
		case chat.SubscriptionFrom, chat.SubscriptionBoth:
			// Already approved server-side; re-confirm instead of asking the
			// user again.
			return true, p.conn.Send(stanza.NewPresence(stanza.SubscribedPresence, from.Bare()))
		}
		c.SetPendingIn(true)
		p.refresh()
		return true, nil

	case stanza.SubscribedPresence:
		c := p.GetOrCreateContact(from, "")
		c.Subscription().Set(c.Subscription().Get().WithTo())
		c.SetPendingOut(false)
		p.refresh()
		return true, nil

	case stanza.UnsubscribePresence:
		if c, ok := p.Contact(from); ok {
			switch c.Subscription().Get() {
			case chat.SubscriptionBoth:
				c.Subscription().Set(chat.SubscriptionTo)
			case chat.SubscriptionFrom:
				c.Subscription().Set(chat.SubscriptionNone)
			}
			c.SetPendingIn(false)
			p.refresh()
		}
		return true, nil

	case stanza.UnsubscribedPresence:
		if c, ok := p.Contact(from); ok {
			switch c.Subscription().Get() {
			case chat.SubscriptionBoth:
				c.Subscription().Set(chat.SubscriptionFrom)
			case chat.SubscriptionTo:
				c.Subscription().Set(chat.SubscriptionNone)
			}
			c.SetPendingOut(false)
			p.refresh()
		}
		return true, nil
	}
	return false, nil
}
