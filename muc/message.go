// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package muc

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

const nsConference = "jabber:x:conference"

// SendGroupMessage sends a body into the room.
// No local echo is appended; the server reflects the message back to every
// occupant, including the sender, and the reflection carries the ID assigned
// here.
func (p *Plugin) SendGroupMessage(room jid.JID, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	msg := stanza.NewMessage(stanza.GroupChatMessage, room.Bare()).
		SetAttr("id", uuid.NewString()).
		Append(stanza.Text("body", body))
	return p.conn.Send(msg)
}

// handleMessage routes room traffic: invitations and live groupchat
// messages. Everything else is left to later handlers.
func (p *Plugin) handleMessage(el *stanza.Element) (bool, error) {
	if stanza.MessageType(el.Type()) == stanza.ErrorMessage {
		return false, nil
	}
	if inv, ok := parseInvitation(el); ok {
		p.invites.Publish(inv)
		return true, nil
	}
	if stanza.MessageType(el.Type()) != stanza.GroupChatMessage {
		return false, nil
	}

	var stamp string
	if delay := el.ChildNS(stanza.NSDelay, "delay"); delay != nil {
		stamp = delay.Attribute("stamp")
	}
	ts, delayed := delayTimestamp(stamp)
	return p.HandleRoomMessage(el, ts, delayed, false)
}

// HandleRoomMessage folds one unwrapped groupchat message into its room: a
// bare subject updates the room subject, a body appends to the room's
// message store with the sender resolved by nick.
// Messages delivered out of the archive do not emit on the live stream.
func (p *Plugin) HandleRoomMessage(el *stanza.Element, ts time.Time, delayed, fromArchive bool) (bool, error) {
	from, err := jid.Parse(el.Attribute("from"))
	if err != nil {
		return false, errors.New("muc: groupchat message with malformed from")
	}
	room := p.GetOrCreateRoom(from)

	body := el.ChildText("body")
	if body == "" {
		if subject := el.Child("subject"); subject != nil {
			room.Subject().Set(subject.Text)
			return true, nil
		}
		return true, nil
	}

	nick := from.Resourcepart
	direction := chat.DirectionIn
	if nick != "" && nick == room.Nick() {
		direction = chat.DirectionOut
	}

	id := el.ID()
	if id == "" {
		id = uuid.NewString()
	} else if room.Messages().Contains(id) {
		// Reflection or archive overlap of an already stored message.
		return true, nil
	}

	msg := chat.Message{
		ID:          id,
		Direction:   direction,
		Body:        body,
		Time:        ts,
		Delayed:     delayed,
		FromArchive: fromArchive,
	}
	if err := room.Messages().Add(msg); err != nil {
		return false, err
	}
	if direction == chat.DirectionIn && !fromArchive {
		p.messages.Publish(RoomMessage{Room: room, Message: msg})
	}
	return true, nil
}

// parseInvitation recognizes mediated muc#user and direct jabber:x:conference
// invitations.
func parseInvitation(el *stanza.Element) (chat.RoomInvitation, bool) {
	if x := el.ChildNS(NSUser, "x"); x != nil {
		if invite := x.Child("invite"); invite != nil {
			room, err := jid.Parse(el.Attribute("from"))
			if err != nil {
				return chat.RoomInvitation{}, false
			}
			inv := chat.RoomInvitation{
				RoomJID:  room.Bare(),
				Password: x.ChildText("password"),
				Reason:   invite.ChildText("reason"),
			}
			if from, err := jid.Parse(invite.Attribute("from")); err == nil {
				inv.From = from
			}
			return inv, true
		}
	}
	if x := el.ChildNS(nsConference, "x"); x != nil {
		room, err := jid.Parse(x.Attribute("jid"))
		if err != nil {
			return chat.RoomInvitation{}, false
		}
		inv := chat.RoomInvitation{
			RoomJID:  room.Bare(),
			Password: x.Attribute("password"),
			Reason:   x.Attribute("reason"),
			Direct:   true,
		}
		if from, err := jid.Parse(el.Attribute("from")); err == nil {
			inv.From = from
		}
		return inv, true
	}
	return chat.RoomInvitation{}, false
}
