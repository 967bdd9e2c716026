// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package mucsub implements the MUC-Sub plugin: room subscriptions that keep
// message notifications flowing while the user is not joined.
package mucsub

import (
	"context"
	"encoding/xml"
	"log/slog"
	"sort"
	"sync"

	ngxchat "github.com/pazznetwork/ngx-chat-sub002"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// NS is the MUC-Sub namespace.
const NS = "urn:xmpp:mucsub"

// Subscribable MUC-Sub event nodes.
const (
	NodePresence     = NS + ":nodes:presence"
	NodeMessages     = NS + ":nodes:messages"
	NodeAffiliations = NS + ":nodes:affiliations"
	NodeSubscribers  = NS + ":nodes:subscribers"
	NodeConfig       = NS + ":nodes:config"
	NodeSubject      = NS + ":nodes:subject"
	NodeSystem       = NS + ":nodes:system"
)

// Subscription is one room subscription with its event nodes.
type Subscription struct {
	RoomJID jid.JID
	Nick    string
	Nodes   []string
}

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) {
		p.logger = l
	}
}

// WithService pins the chat service queried for existing subscriptions.
func WithService(service jid.JID) Option {
	return func(p *Plugin) {
		p.service = service
	}
}

// Plugin is the MUC-Sub plugin.
type Plugin struct {
	conn   ngxchat.Connection
	logger *slog.Logger

	mu      sync.Mutex
	service jid.JID
	subs    map[string]Subscription

	subsV *obs.Value[[]Subscription]
}

// New creates the plugin; register it on a session with AddPlugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		logger: slog.Default(),
		subs:   make(map[string]Subscription),
		subsV:  obs.NewValue[[]Subscription](nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register implements ngxchat.Plugin.
func (p *Plugin) Register(conn ngxchat.Connection) {
	p.conn = conn
}

// OnOnline implements ngxchat.Plugin: it fetches the existing subscriptions
// from the chat service when one is configured.
func (p *Plugin) OnOnline(ctx context.Context) error {
	p.mu.Lock()
	service := p.service
	p.mu.Unlock()
	if service.IsZero() {
		return nil
	}
	return p.fetchSubscriptions(ctx, service)
}

// OnOffline implements ngxchat.Plugin: the subscription cache resets.
func (p *Plugin) OnOffline() {
	p.mu.Lock()
	p.subs = make(map[string]Subscription)
	p.mu.Unlock()
	p.subsV.Set(nil)
}

// Subscriptions is the reactive set of room subscriptions.
func (p *Plugin) Subscriptions() *obs.Value[[]Subscription] { return p.subsV }

// Subscribed reports whether a subscription to the bare form of room is
// known.
func (p *Plugin) Subscribed(room jid.JID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[room.Bare().String()]
	return ok
}

// Subscribe subscribes to the room's event nodes under the given nick.
// NodeMessages is implied when no nodes are given.
func (p *Plugin) Subscribe(ctx context.Context, room jid.JID, nick string, nodes ...string) error {
	if len(nodes) == 0 {
		nodes = []string{NodeMessages}
	}
	sub := stanza.New(xml.Name{Space: NS, Local: "subscribe"},
		xml.Attr{Name: xml.Name{Local: "nick"}, Value: nick},
	)
	for _, node := range nodes {
		sub.Append(stanza.New(xml.Name{Local: "event"},
			xml.Attr{Name: xml.Name{Local: "node"}, Value: node},
		))
	}
	iq := stanza.NewIQ(stanza.SetIQ, room.Bare()).Append(sub)
	if _, err := p.conn.SendIQ(ctx, iq); err != nil {
		return err
	}

	p.mu.Lock()
	p.subs[room.Bare().String()] = Subscription{
		RoomJID: room.Bare(),
		Nick:    nick,
		Nodes:   nodes,
	}
	p.mu.Unlock()
	p.refresh()
	return nil
}

// Unsubscribe drops the subscription to the room.
func (p *Plugin) Unsubscribe(ctx context.Context, room jid.JID) error {
	iq := stanza.NewIQ(stanza.SetIQ, room.Bare()).
		Append(stanza.New(xml.Name{Space: NS, Local: "unsubscribe"}))
	if _, err := p.conn.SendIQ(ctx, iq); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.subs, room.Bare().String())
	p.mu.Unlock()
	p.refresh()
	return nil
}

// fetchSubscriptions queries the chat service for the rooms the current user
// is subscribed to.
func (p *Plugin) fetchSubscriptions(ctx context.Context, service jid.JID) error {
	iq := stanza.NewIQ(stanza.GetIQ, service).
		Append(stanza.New(xml.Name{Space: NS, Local: "subscriptions"}))
	resp, err := p.conn.SendIQ(ctx, iq)
	if err != nil {
		return err
	}
	list := resp.ChildNS(NS, "subscriptions")
	if list == nil {
		return nil
	}

	p.mu.Lock()
	p.subs = make(map[string]Subscription)
	for _, el := range list.ChildrenNamed("subscription") {
		room, err := jid.Parse(el.Attribute("jid"))
		if err != nil {
			p.logger.Warn("subscription with malformed jid", "jid", el.Attribute("jid"))
			continue
		}
		sub := Subscription{RoomJID: room.Bare(), Nick: el.Attribute("nick")}
		for _, event := range el.ChildrenNamed("event") {
			sub.Nodes = append(sub.Nodes, event.Attribute("node"))
		}
		p.subs[sub.RoomJID.String()] = sub
	}
	p.mu.Unlock()
	p.refresh()
	return nil
}

func (p *Plugin) refresh() {
	p.mu.Lock()
	all := make([]Subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		all = append(all, sub)
	}
	p.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		return all[i].RoomJID.String() < all[j].RoomJID.String()
	})
	p.subsV.Set(all)
}
