// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package roster

import (
	"context"
	"encoding/xml"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// NSBlocking is the blocking command namespace.
const NSBlocking = "urn:xmpp:blocking"

// BlockedJIDs is the reactive set of blocked bare JID strings.
func (p *Plugin) BlockedJIDs() *obs.Value[[]string] { return p.blockedJIDsV }

// BlockedContacts holds the known contacts whose JID is on the block list.
func (p *Plugin) BlockedContacts() *obs.Value[[]*chat.Contact] { return p.blockedV }

// NotBlockedContacts holds the known contacts whose JID is not on the block
// list.
func (p *Plugin) NotBlockedContacts() *obs.Value[[]*chat.Contact] { return p.notBlockedV }

// BlockJID asks the server to block the bare form of addr.
// The local block set updates when the server pushes the change.
func (p *Plugin) BlockJID(ctx context.Context, addr jid.JID) error {
	iq := stanza.NewIQ(stanza.SetIQ, jid.JID{}).Append(
		stanza.New(xml.Name{Space: NSBlocking, Local: "block"}).Append(
			blockItem(addr),
		),
	)
	_, err := p.conn.SendIQ(ctx, iq)
	return err
}

// UnblockJID asks the server to unblock the bare form of addr.
func (p *Plugin) UnblockJID(ctx context.Context, addr jid.JID) error {
	iq := stanza.NewIQ(stanza.SetIQ, jid.JID{}).Append(
		stanza.New(xml.Name{Space: NSBlocking, Local: "unblock"}).Append(
			blockItem(addr),
		),
	)
	_, err := p.conn.SendIQ(ctx, iq)
	return err
}

func blockItem(addr jid.JID) *stanza.Element {
	return stanza.New(xml.Name{Local: "item"}, xml.Attr{
		Name: xml.Name{Local: "jid"}, Value: addr.Bare().String(),
	})
}

// blockKey canonicalizes a block-list item so it partitions against
// contact addresses regardless of the casing the server pushed.
func blockKey(item *stanza.Element) (string, bool) {
	addr, err := jid.Parse(item.Attribute("jid"))
	if err != nil {
		return "", false
	}
	return addr.Bare().String(), true
}

func (p *Plugin) fetchBlockList(ctx context.Context) error {
	iq := stanza.NewIQ(stanza.GetIQ, jid.JID{}).
		Append(stanza.New(xml.Name{Space: NSBlocking, Local: "blocklist"}))
	resp, err := p.conn.SendIQ(ctx, iq)
	if err != nil {
		return err
	}
	list := resp.ChildNS(NSBlocking, "blocklist")
	if list == nil {
		return nil
	}
	p.mu.Lock()
	p.blocked = make(map[string]struct{})
	for _, item := range list.ChildrenNamed("item") {
		if key, ok := blockKey(item); ok {
			p.blocked[key] = struct{}{}
		}
	}
	p.mu.Unlock()
	p.refresh()
	return nil
}

// handleBlockPush applies a blocking-command push.
// An unblock without items clears the whole block list.
func (p *Plugin) handleBlockPush(el *stanza.Element) (bool, error) {
	block := el.ChildNS(NSBlocking, "block")
	unblock := el.ChildNS(NSBlocking, "unblock")
	if block == nil && unblock == nil {
		return false, nil
	}

	p.mu.Lock()
	if block != nil {
		for _, item := range block.ChildrenNamed("item") {
			if key, ok := blockKey(item); ok {
				p.blocked[key] = struct{}{}
			}
		}
	}
	if unblock != nil {
		items := unblock.ChildrenNamed("item")
		if len(items) == 0 {
			p.blocked = make(map[string]struct{})
		}
		for _, item := range items {
			if key, ok := blockKey(item); ok {
				delete(p.blocked, key)
			}
		}
	}
	p.mu.Unlock()
	p.refresh()

	if id := el.ID(); id != "" {
		ack := stanza.NewIQ(stanza.ResultIQ, jid.JID{}).SetAttr("id", id)
		if err := p.conn.Send(ack); err != nil {
			return true, err
		}
	}
	return true, nil
}
