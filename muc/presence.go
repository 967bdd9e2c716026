// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package muc

import (
	"encoding/xml"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// XEP-0045 status codes carried in muc#user presence.
const (
	statusSelf            = "110"
	statusRoomCreated     = "201"
	statusBanned          = "301"
	statusNewNick         = "303"
	statusKicked          = "307"
	statusAffiliationLost = "321"
	statusMembersOnly     = "322"
	statusShutdown        = "332"
)

// handleOccupantPresence runs the occupant state machine for one muc#user
// presence.
func (p *Plugin) handleOccupantPresence(el *stanza.Element) (bool, error) {
	x := el.ChildNS(NSUser, "x")
	if x == nil {
		return false, nil
	}
	from, err := jid.Parse(el.Attribute("from"))
	if err != nil || from.Resourcepart == "" {
		p.logger.Warn("occupant presence with malformed from", "from", el.Attribute("from"))
		return true, nil
	}

	occ := chat.RoomOccupant{JID: from, Nick: from.Resourcepart}
	var newNick string
	if item := x.Child("item"); item != nil {
		if aff, ok := chat.ParseAffiliation(item.Attribute("affiliation")); ok {
			occ.Affiliation = aff
		}
		if role, ok := chat.ParseRole(item.Attribute("role")); ok {
			occ.Role = role
		}
		if real := item.Attribute("jid"); real != "" {
			if realJID, err := jid.Parse(real); err == nil {
				occ.RealJID = realJID
			}
		}
		newNick = item.Attribute("nick")
	}

	codes := make(map[string]bool)
	for _, status := range x.ChildrenNamed("status") {
		codes[status.Attribute("code")] = true
	}

	room := p.GetOrCreateRoom(from)
	isSelf := codes[statusSelf] || from.Equal(room.OccupantJID().Get())

	if stanza.PresenceType(el.Type()) == stanza.UnavailablePresence {
		change := chat.OccupantLeft
		switch {
		case codes[statusNewNick]:
			change = chat.OccupantChangedNick
		case codes[statusBanned]:
			change = chat.OccupantBanned
		case codes[statusKicked]:
			change = chat.OccupantKicked
		case codes[statusAffiliationLost]:
			change = chat.OccupantLostMembership
		case codes[statusMembersOnly]:
			change = chat.OccupantRoomMemberOnly
		case codes[statusShutdown]:
			change = chat.OccupantLeftOnConnectionError
		}
		room.ApplyOccupantChange(occ, change, isSelf, newNick)

		if isSelf && change.Removes() {
			room.OccupantJID().Set(jid.JID{})
			p.mu.Lock()
			waiters := notifyWaiters(p.leaveWaiters, from.Bare().String())
			p.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
		}
		return true, nil
	}

	change := chat.OccupantJoined
	if _, known := room.OccupantByNick(occ.Nick); known {
		change = chat.OccupantModified
	}
	room.ApplyOccupantChange(occ, change, isSelf, "")

	if isSelf {
		room.OccupantJID().Set(from)
		p.mu.Lock()
		waiters := notifyWaiters(p.joinWaiters, from.Bare().String())
		p.mu.Unlock()
		for _, ch := range waiters {
			close(ch)
		}
	}
	if codes[statusRoomCreated] {
		p.logger.Debug("room awaiting configuration", "room", from.Bare().String())
	}
	return true, nil
}

// ChangeUserNickname requests a new nick in the room; the rename is applied
// when the server reflects the nick-change presence.
func (p *Plugin) ChangeUserNickname(room jid.JID, newNick string) error {
	to, err := room.Bare().WithResource(newNick)
	if err != nil {
		return err
	}
	return p.conn.Send(stanza.NewPresence(stanza.AvailablePresence, to))
}

// mucJoinPresence builds the directed presence that enters a room.
func mucJoinPresence(occupant jid.JID) *stanza.Element {
	return stanza.NewPresence(stanza.AvailablePresence, occupant).
		Append(stanza.New(xml.Name{Space: NS, Local: "x"}))
}
