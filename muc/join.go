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
	nsXData      = "jabber:x:data"
	formTypeRoom = NS + "#roomconfig"
)

// RoomCreationOptions is the configuration bag for CreateRoom.
type RoomCreationOptions struct {
	// RoomID is the localpart of the new room's address.
	RoomID string

	// Service is the chat service; the discovered service is used when zero.
	Service jid.JID

	// Nick is the nick to join under; the localpart of the current user's
	// address is used when empty.
	Nick string

	Name              string
	Public            bool
	MembersOnly       bool
	NonAnonymous      bool
	PersistentRoom    bool
	AllowSubscription bool
	Moderated         bool
}

// JoinRoom enters the room under the given nick and blocks until the server
// reflects the self-presence confirming the join.
func (p *Plugin) JoinRoom(ctx context.Context, room jid.JID, nick string) (*chat.Room, error) {
	if nick == "" {
		nick = p.conn.LocalAddr().Localpart
	}
	occupant, err := room.Bare().WithResource(nick)
	if err != nil {
		return nil, err
	}

	r := p.GetOrCreateRoom(room)
	if !r.OccupantJID().Get().IsZero() {
		return r, nil
	}

	p.mu.Lock()
	ch := addWaiter(p.joinWaiters, room.Bare().String())
	p.mu.Unlock()

	if err := p.conn.Send(mucJoinPresence(occupant)); err != nil {
		p.mu.Lock()
		dropWaiter(p.joinWaiters, room.Bare().String(), ch)
		p.mu.Unlock()
		return nil, err
	}
	if err := await(ctx, ch); err != nil {
		p.mu.Lock()
		dropWaiter(p.joinWaiters, room.Bare().String(), ch)
		p.mu.Unlock()
		return nil, fmt.Errorf("joining %s: %w", room.Bare(), err)
	}
	return r, nil
}

// CreateRoom joins a fresh room and submits its configuration form.
func (p *Plugin) CreateRoom(ctx context.Context, opts RoomCreationOptions) (*chat.Room, error) {
	service := opts.Service
	if service.IsZero() {
		service = p.Service()
	}
	if service.IsZero() {
		return nil, ErrNoService
	}
	room, err := jid.New(opts.RoomID, service.Domainpart, "")
	if err != nil {
		return nil, err
	}

	r, err := p.JoinRoom(ctx, room, opts.Nick)
	if err != nil {
		return nil, err
	}

	form := stanza.New(xml.Name{Space: nsXData, Local: "x"},
		xml.Attr{Name: xml.Name{Local: "type"}, Value: "submit"}).Append(
		formField("FORM_TYPE", formTypeRoom),
		formField("muc#roomconfig_roomname", opts.Name),
		formBoolField("muc#roomconfig_publicroom", opts.Public),
		formBoolField("muc#roomconfig_membersonly", opts.MembersOnly),
		formField("muc#roomconfig_whois", whoisValue(opts.NonAnonymous)),
		formBoolField("muc#roomconfig_persistentroom", opts.PersistentRoom),
		formBoolField("allow_subscription", opts.AllowSubscription),
		formBoolField("muc#roomconfig_moderatedroom", opts.Moderated),
	)
	iq := stanza.NewIQ(stanza.SetIQ, room).Append(
		stanza.New(xml.Name{Space: NSOwner, Local: "query"}).Append(form),
	)
	if _, err := p.conn.SendIQ(ctx, iq); err != nil {
		return nil, fmt.Errorf("configuring %s: %w", room, err)
	}

	r.Name = opts.Name
	r.Info = &chat.RoomInfo{
		Name:         opts.Name,
		Public:       opts.Public,
		MembersOnly:  opts.MembersOnly,
		NonAnonymous: opts.NonAnonymous,
		Persistent:   opts.PersistentRoom,
		Moderated:    opts.Moderated,
	}
	return r, nil
}

// LeaveRoom exits the room and blocks until the server reflects the
// unavailable self-presence; callers may re-query room state immediately
// afterwards without racing the reflection.
func (p *Plugin) LeaveRoom(ctx context.Context, room jid.JID, status string) error {
	r, ok := p.Room(room)
	if !ok {
		return ErrNotInRoom
	}
	occupant := r.OccupantJID().Get()
	if occupant.IsZero() {
		return ErrNotInRoom
	}

	p.mu.Lock()
	ch := addWaiter(p.leaveWaiters, room.Bare().String())
	p.mu.Unlock()

	leave := stanza.NewPresence(stanza.UnavailablePresence, occupant)
	if status != "" {
		leave.Append(stanza.Text("status", status))
	}
	if err := p.conn.Send(leave); err != nil {
		p.mu.Lock()
		dropWaiter(p.leaveWaiters, room.Bare().String(), ch)
		p.mu.Unlock()
		return err
	}
	if err := await(ctx, ch); err != nil {
		p.mu.Lock()
		dropWaiter(p.leaveWaiters, room.Bare().String(), ch)
		p.mu.Unlock()
		return fmt.Errorf("leaving %s: %w", room.Bare(), err)
	}
	return nil
}

// DestroyRoom destroys the room on the server and drops it from the local
// set.
func (p *Plugin) DestroyRoom(ctx context.Context, room jid.JID) error {
	iq := stanza.NewIQ(stanza.SetIQ, room.Bare()).Append(
		stanza.New(xml.Name{Space: NSOwner, Local: "query"}).Append(
			stanza.New(xml.Name{Local: "destroy"}),
		),
	)
	if _, err := p.conn.SendIQ(ctx, iq); err != nil {
		return err
	}
	p.forgetRoom(room)
	return nil
}

func formField(name, value string) *stanza.Element {
	return stanza.New(xml.Name{Local: "field"},
		xml.Attr{Name: xml.Name{Local: "var"}, Value: name},
	).Append(stanza.Text("value", value))
}

func formBoolField(name string, value bool) *stanza.Element {
	v := "0"
	if value {
		v = "1"
	}
	return formField(name, v)
}

// whoisValue maps the non-anonymous flag onto the muc#roomconfig_whois
// field: anyone may see real JIDs in a non-anonymous room.
func whoisValue(nonAnonymous bool) string {
	if nonAnonymous {
		return "anyone"
	}
	return "moderators"
}
