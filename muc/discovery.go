// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package muc

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

const (
	nsDiscoItems = "http://jabber.org/protocol/disco#items"
	nsDiscoInfo  = "http://jabber.org/protocol/disco#info"
)

// Room metadata features advertised in disco#info.
const (
	featurePublic       = "muc_public"
	featureMembersOnly  = "muc_membersonly"
	featureNonAnonymous = "muc_nonanonymous"
	featurePersistent   = "muc_persistent"
	featureModerated    = "muc_moderated"
)

// discoverService walks the server's disco#items looking for the component
// advertising the multi-user chat feature.
func (p *Plugin) discoverService(ctx context.Context) (jid.JID, error) {
	domain := p.conn.LocalAddr().Domain()
	if domain.IsZero() {
		return jid.JID{}, ErrNoService
	}
	items, err := p.discoItems(ctx, domain)
	if err != nil {
		return jid.JID{}, err
	}
	for _, item := range items {
		info, err := p.discoInfo(ctx, item)
		if err != nil {
			p.logger.Debug("service discovery failed", "service", item.String(), "error", err)
			continue
		}
		if info.features[NS] {
			return item, nil
		}
	}
	return jid.JID{}, ErrNoService
}

// QueryAllRooms walks the chat service's disco#items and populates a Room
// with discovered metadata per advertised room.
func (p *Plugin) QueryAllRooms(ctx context.Context) ([]*chat.Room, error) {
	service := p.Service()
	if service.IsZero() {
		return nil, ErrNoService
	}
	items, err := p.discoItems(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("discovering rooms on %s: %w", service, err)
	}

	rooms := make([]*chat.Room, 0, len(items))
	for _, addr := range items {
		r := p.GetOrCreateRoom(addr)
		info, err := p.discoInfo(ctx, addr)
		if err != nil {
			p.logger.Warn("room discovery failed", "room", addr.String(), "error", err)
		} else {
			r.Name = info.name
			r.Info = &chat.RoomInfo{
				Name:         info.name,
				Description:  info.fields["muc#roominfo_description"],
				Public:       info.features[featurePublic],
				MembersOnly:  info.features[featureMembersOnly],
				NonAnonymous: info.features[featureNonAnonymous],
				Persistent:   info.features[featurePersistent],
				Moderated:    info.features[featureModerated],
			}
		}
		rooms = append(rooms, r)
	}
	p.refresh()
	return rooms, nil
}

func (p *Plugin) discoItems(ctx context.Context, target jid.JID) ([]jid.JID, error) {
	iq := stanza.NewIQ(stanza.GetIQ, target).
		Append(stanza.New(xml.Name{Space: nsDiscoItems, Local: "query"}))
	resp, err := p.conn.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	query := resp.ChildNS(nsDiscoItems, "query")
	if query == nil {
		return nil, nil
	}
	var items []jid.JID
	for _, item := range query.ChildrenNamed("item") {
		addr, err := jid.Parse(item.Attribute("jid"))
		if err != nil {
			p.logger.Warn("disco item with malformed jid", "jid", item.Attribute("jid"))
			continue
		}
		items = append(items, addr)
	}
	return items, nil
}

type discoInfo struct {
	name     string
	features map[string]bool
	fields   map[string]string
}

func (p *Plugin) discoInfo(ctx context.Context, target jid.JID) (discoInfo, error) {
	info := discoInfo{
		features: make(map[string]bool),
		fields:   make(map[string]string),
	}
	iq := stanza.NewIQ(stanza.GetIQ, target).
		Append(stanza.New(xml.Name{Space: nsDiscoInfo, Local: "query"}))
	resp, err := p.conn.SendIQ(ctx, iq)
	if err != nil {
		return info, err
	}
	query := resp.ChildNS(nsDiscoInfo, "query")
	if query == nil {
		return info, nil
	}
	for _, identity := range query.ChildrenNamed("identity") {
		if info.name == "" {
			info.name = identity.Attribute("name")
		}
	}
	for _, feature := range query.ChildrenNamed("feature") {
		info.features[feature.Attribute("var")] = true
	}
	if form := query.ChildNS(nsXData, "x"); form != nil {
		for _, field := range form.ChildrenNamed("field") {
			info.fields[field.Attribute("var")] = field.ChildText("value")
		}
	}
	return info, nil
}
