// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package muc

import (
	"context"
	"encoding/xml"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// setAffiliation issues a muc#admin set changing the long-term standing of a
// user identified by bare JID.
func (p *Plugin) setAffiliation(ctx context.Context, room, user jid.JID, aff chat.Affiliation, reason string) error {
	item := stanza.New(xml.Name{Local: "item"},
		xml.Attr{Name: xml.Name{Local: "jid"}, Value: user.Bare().String()},
		xml.Attr{Name: xml.Name{Local: "affiliation"}, Value: aff.String()},
	)
	if reason != "" {
		item.Append(stanza.Text("reason", reason))
	}
	iq := stanza.NewIQ(stanza.SetIQ, room.Bare()).Append(
		stanza.New(xml.Name{Space: NSAdmin, Local: "query"}).Append(item),
	)
	_, err := p.conn.SendIQ(ctx, iq)
	return err
}

// setRole issues a muc#admin set changing the in-room role of an occupant
// identified by nick.
func (p *Plugin) setRole(ctx context.Context, room jid.JID, nick string, role chat.Role, reason string) error {
	item := stanza.New(xml.Name{Local: "item"},
		xml.Attr{Name: xml.Name{Local: "nick"}, Value: nick},
		xml.Attr{Name: xml.Name{Local: "role"}, Value: role.String()},
	)
	if reason != "" {
		item.Append(stanza.Text("reason", reason))
	}
	iq := stanza.NewIQ(stanza.SetIQ, room.Bare()).Append(
		stanza.New(xml.Name{Space: NSAdmin, Local: "query"}).Append(item),
	)
	_, err := p.conn.SendIQ(ctx, iq)
	return err
}

// KickFromRoom removes the occupant with the given nick by revoking its
// role.
func (p *Plugin) KickFromRoom(ctx context.Context, room jid.JID, nick, reason string) error {
	return p.setRole(ctx, room, nick, chat.RoleNone, reason)
}

// BanUser makes the user an outcast of the room.
func (p *Plugin) BanUser(ctx context.Context, room, user jid.JID, reason string) error {
	return p.setAffiliation(ctx, room, user, chat.AffiliationOutcast, reason)
}

// UnbanUser lifts an outcast affiliation.
func (p *Plugin) UnbanUser(ctx context.Context, room, user jid.JID) error {
	return p.setAffiliation(ctx, room, user, chat.AffiliationNone, "")
}

// GrantMembership makes the user a member of the room.
func (p *Plugin) GrantMembership(ctx context.Context, room, user jid.JID, reason string) error {
	return p.setAffiliation(ctx, room, user, chat.AffiliationMember, reason)
}

// RevokeMembership removes the user's membership.
func (p *Plugin) RevokeMembership(ctx context.Context, room, user jid.JID, reason string) error {
	return p.setAffiliation(ctx, room, user, chat.AffiliationNone, reason)
}

// GrantAdmin makes the user an admin of the room.
func (p *Plugin) GrantAdmin(ctx context.Context, room, user jid.JID, reason string) error {
	return p.setAffiliation(ctx, room, user, chat.AffiliationAdmin, reason)
}

// RevokeAdmin demotes the user to plain member.
func (p *Plugin) RevokeAdmin(ctx context.Context, room, user jid.JID, reason string) error {
	return p.setAffiliation(ctx, room, user, chat.AffiliationMember, reason)
}

// GrantModeratorStatus makes the occupant with the given nick a moderator.
func (p *Plugin) GrantModeratorStatus(ctx context.Context, room jid.JID, nick, reason string) error {
	return p.setRole(ctx, room, nick, chat.RoleModerator, reason)
}

// RevokeModeratorStatus demotes the occupant with the given nick to plain
// participant.
func (p *Plugin) RevokeModeratorStatus(ctx context.Context, room jid.JID, nick, reason string) error {
	return p.setRole(ctx, room, nick, chat.RoleParticipant, reason)
}

// InviteUser sends a mediated invitation through the room.
func (p *Plugin) InviteUser(room, user jid.JID, reason string) error {
	invite := stanza.New(xml.Name{Local: "invite"},
		xml.Attr{Name: xml.Name{Local: "to"}, Value: user.Bare().String()},
	)
	if reason != "" {
		invite.Append(stanza.Text("reason", reason))
	}
	msg := stanza.NewMessage("", room.Bare()).Append(
		stanza.New(xml.Name{Space: NSUser, Local: "x"}).Append(invite),
	)
	return p.conn.Send(msg)
}

// InviteUserDirect sends a jabber:x:conference invitation straight to the
// user, bypassing the room.
func (p *Plugin) InviteUserDirect(room, user jid.JID, reason string) error {
	x := stanza.New(xml.Name{Space: nsConference, Local: "x"},
		xml.Attr{Name: xml.Name{Local: "jid"}, Value: room.Bare().String()},
	)
	if reason != "" {
		x.SetAttr("reason", reason)
	}
	return p.conn.Send(stanza.NewMessage("", user).Append(x))
}

// ChangeRoomSubject publishes a new room subject.
func (p *Plugin) ChangeRoomSubject(room jid.JID, subject string) error {
	msg := stanza.NewMessage(stanza.GroupChatMessage, room.Bare()).
		Append(stanza.Text("subject", subject))
	return p.conn.Send(msg)
}
