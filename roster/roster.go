// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package roster implements the contact list and block list plugin.
//
// The contact set is maintained from the server roster and its pushes; the
// block list from urn:xmpp:blocking. Derived reactive views partition the
// contact set by subscription state and by blockedness.
package roster

import (
	"context"
	"encoding/xml"
	"log/slog"
	"sort"
	"sync"

	ngxchat "github.com/pazznetwork/ngx-chat-sub002"
	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// NS is the roster namespace.
const NS = "jabber:iq:roster"

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) {
		p.logger = l
	}
}

// Plugin is the roster and block list plugin.
type Plugin struct {
	conn   ngxchat.Connection
	logger *slog.Logger

	mu       sync.Mutex
	contacts map[string]*chat.Contact
	blocked  map[string]struct{}

	contactsV         *obs.Value[[]*chat.Contact]
	subscribedV       *obs.Value[[]*chat.Contact]
	requestsReceivedV *obs.Value[[]*chat.Contact]
	requestsSentV     *obs.Value[[]*chat.Contact]
	unaffiliatedV     *obs.Value[[]*chat.Contact]
	blockedV          *obs.Value[[]*chat.Contact]
	notBlockedV       *obs.Value[[]*chat.Contact]
	blockedJIDsV      *obs.Value[[]string]
}

// New creates the plugin; register it on a session with AddPlugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		logger:            slog.Default(),
		contacts:          make(map[string]*chat.Contact),
		blocked:           make(map[string]struct{}),
		contactsV:         obs.NewValue[[]*chat.Contact](nil),
		subscribedV:       obs.NewValue[[]*chat.Contact](nil),
		requestsReceivedV: obs.NewValue[[]*chat.Contact](nil),
		requestsSentV:     obs.NewValue[[]*chat.Contact](nil),
		unaffiliatedV:     obs.NewValue[[]*chat.Contact](nil),
		blockedV:          obs.NewValue[[]*chat.Contact](nil),
		notBlockedV:       obs.NewValue[[]*chat.Contact](nil),
		blockedJIDsV:      obs.NewValue[[]string](nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register implements ngxchat.Plugin.
func (p *Plugin) Register(conn ngxchat.Connection) {
	p.conn = conn
	conn.Handle(ngxchat.Filter{Local: "iq", Space: NS, Type: "set"}, p.handleRosterPush)
	conn.Handle(ngxchat.Filter{Local: "iq", Space: NSBlocking, Type: "set"}, p.handleBlockPush)
	conn.Handle(ngxchat.Filter{Local: "presence"}, p.handlePresence)
}

// OnOnline implements ngxchat.Plugin: it fetches the roster and the block
// list.
func (p *Plugin) OnOnline(ctx context.Context) error {
	if err := p.fetchRoster(ctx); err != nil {
		return err
	}
	return p.fetchBlockList(ctx)
}

// OnOffline implements ngxchat.Plugin: the per-session contact and block
// caches reset to empty.
func (p *Plugin) OnOffline() {
	p.mu.Lock()
	p.contacts = make(map[string]*chat.Contact)
	p.blocked = make(map[string]struct{})
	p.mu.Unlock()
	p.refresh()
}

// Contacts is the reactive set of all known contacts.
func (p *Plugin) Contacts() *obs.Value[[]*chat.Contact] { return p.contactsV }

// ContactsSubscribed holds contacts with subscription to or both.
func (p *Plugin) ContactsSubscribed() *obs.Value[[]*chat.Contact] { return p.subscribedV }

// ContactRequestsReceived holds contacts with an unanswered inbound
// subscription request.
func (p *Plugin) ContactRequestsReceived() *obs.Value[[]*chat.Contact] { return p.requestsReceivedV }

// ContactRequestsSent holds contacts with an unanswered outbound
// subscription request.
func (p *Plugin) ContactRequestsSent() *obs.Value[[]*chat.Contact] { return p.requestsSentV }

// ContactsUnaffiliated holds contacts with no subscription relation and no
// pending request, e.g. strangers that sent a message.
func (p *Plugin) ContactsUnaffiliated() *obs.Value[[]*chat.Contact] { return p.unaffiliatedV }

// Contact looks up a contact by the bare form of addr.
func (p *Plugin) Contact(addr jid.JID) (*chat.Contact, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.contacts[addr.Bare().String()]
	return c, ok
}

// GetOrCreateContact returns the contact for the bare form of addr,
// creating it lazily on first reference.
func (p *Plugin) GetOrCreateContact(addr jid.JID, name string) *chat.Contact {
	p.mu.Lock()
	key := addr.Bare().String()
	c, ok := p.contacts[key]
	if !ok {
		c = chat.NewContact(addr, name)
		p.contacts[key] = c
	}
	p.mu.Unlock()
	if !ok {
		p.refresh()
	}
	return c
}

// AddContact asks the server to add the bare form of addr to the roster and
// requests a presence subscription.
// The local contact set is only updated once the server confirms through a
// roster push; resolution of the IQ alone does not mean the roster changed.
func (p *Plugin) AddContact(ctx context.Context, addr jid.JID) error {
	iq := stanza.NewIQ(stanza.SetIQ, jid.JID{}).Append(
		stanza.New(xml.Name{Space: NS, Local: "query"}).Append(
			stanza.New(xml.Name{Local: "item"}, xml.Attr{
				Name: xml.Name{Local: "jid"}, Value: addr.Bare().String(),
			}),
		),
	)
	if _, err := p.conn.SendIQ(ctx, iq); err != nil {
		return err
	}
	c := p.GetOrCreateContact(addr, "")
	c.SetPendingOut(true)
	p.refresh()
	return p.conn.Send(stanza.NewPresence(stanza.SubscribePresence, addr.Bare()))
}

// RemoveContact asks the server to remove the bare form of addr from the
// roster; removal from the live set happens on the confirming roster push.
func (p *Plugin) RemoveContact(ctx context.Context, addr jid.JID) error {
	iq := stanza.NewIQ(stanza.SetIQ, jid.JID{}).Append(
		stanza.New(xml.Name{Space: NS, Local: "query"}).Append(
			stanza.New(xml.Name{Local: "item"},
				xml.Attr{Name: xml.Name{Local: "jid"}, Value: addr.Bare().String()},
				xml.Attr{Name: xml.Name{Local: "subscription"}, Value: "remove"},
			),
		),
	)
	_, err := p.conn.SendIQ(ctx, iq)
	return err
}

func (p *Plugin) fetchRoster(ctx context.Context) error {
	iq := stanza.NewIQ(stanza.GetIQ, jid.JID{}).
		Append(stanza.New(xml.Name{Space: NS, Local: "query"}))
	resp, err := p.conn.SendIQ(ctx, iq)
	if err != nil {
		return err
	}
	query := resp.ChildNS(NS, "query")
	if query == nil {
		return nil
	}
	for _, item := range query.ChildrenNamed("item") {
		p.upsertItem(item)
	}
	p.refresh()
	return nil
}

// handleRosterPush applies an unsolicited roster set from the server: a
// remove subscription deletes the contact, anything else upserts it while
// preserving the existing contact identity and message store.
func (p *Plugin) handleRosterPush(el *stanza.Element) (bool, error) {
	query := el.ChildNS(NS, "query")
	if query == nil {
		return false, nil
	}
	for _, item := range query.ChildrenNamed("item") {
		p.upsertItem(item)
	}
	p.refresh()

	// Roster pushes are IQ sets and must be acknowledged.
	if id := el.ID(); id != "" {
		ack := stanza.NewIQ(stanza.ResultIQ, jid.JID{}).SetAttr("id", id)
		if err := p.conn.Send(ack); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (p *Plugin) upsertItem(item *stanza.Element) {
	addr, err := jid.Parse(item.Attribute("jid"))
	if err != nil {
		p.logger.Warn("roster item with malformed jid", "jid", item.Attribute("jid"), "error", err)
		return
	}
	key := addr.Bare().String()
	subRaw := item.Attribute("subscription")

	p.mu.Lock()
	if subRaw == "remove" {
		delete(p.contacts, key)
		p.mu.Unlock()
		return
	}
	c, ok := p.contacts[key]
	if !ok {
		c = chat.NewContact(addr, item.Attribute("name"))
		p.contacts[key] = c
	} else if name := item.Attribute("name"); name != "" {
		c.Name = name
	}
	p.mu.Unlock()

	sub, ok := chat.ParseSubscription(subRaw)
	if !ok {
		p.logger.Warn("roster item with unknown subscription", "subscription", subRaw)
		return
	}
	c.Subscription().Set(sub)
	switch sub {
	case chat.SubscriptionTo, chat.SubscriptionBoth:
		c.SetPendingOut(false)
	}
	switch sub {
	case chat.SubscriptionFrom, chat.SubscriptionBoth:
		c.SetPendingIn(false)
	}
	if item.Attribute("ask") == "subscribe" {
		c.SetPendingOut(true)
	}
}

// refresh recomputes every derived view from the contact and block sets.
func (p *Plugin) refresh() {
	p.mu.Lock()
	all := make([]*chat.Contact, 0, len(p.contacts))
	for _, c := range p.contacts {
		all = append(all, c)
	}
	blocked := make(map[string]struct{}, len(p.blocked))
	for j := range p.blocked {
		blocked[j] = struct{}{}
	}
	p.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].JID().String() < all[j].JID().String()
	})

	var subscribed, received, sent, unaffiliated, blockedC, notBlockedC []*chat.Contact
	for _, c := range all {
		sub := c.Subscription().Get()
		switch sub {
		case chat.SubscriptionTo, chat.SubscriptionBoth:
			subscribed = append(subscribed, c)
		}
		if c.PendingIn() {
			received = append(received, c)
		}
		if c.PendingOut() {
			sent = append(sent, c)
		}
		if sub == chat.SubscriptionNone && !c.PendingIn() && !c.PendingOut() {
			unaffiliated = append(unaffiliated, c)
		}
		if _, isBlocked := blocked[c.JID().String()]; isBlocked {
			blockedC = append(blockedC, c)
		} else {
			notBlockedC = append(notBlockedC, c)
		}
	}
	jids := make([]string, 0, len(blocked))
	for j := range blocked {
		jids = append(jids, j)
	}
	sort.Strings(jids)

	p.contactsV.Set(all)
	p.subscribedV.Set(subscribed)
	p.requestsReceivedV.Set(received)
	p.requestsSentV.Set(sent)
	p.unaffiliatedV.Set(unaffiliated)
	p.blockedV.Set(blockedC)
	p.notBlockedV.Set(notBlockedC)
	p.blockedJIDsV.Set(jids)
}
