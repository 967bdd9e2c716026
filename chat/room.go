// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package chat

import (
	"sync"

	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
)

// Affiliation is a user's long-term standing with a room.
type Affiliation uint8

const (
	AffiliationNone Affiliation = iota
	AffiliationOutcast
	AffiliationMember
	AffiliationAdmin
	AffiliationOwner
)

// ParseAffiliation maps the wire form onto an Affiliation.
func ParseAffiliation(s string) (Affiliation, bool) {
	switch s {
	case "none", "":
		return AffiliationNone, true
	case "outcast":
		return AffiliationOutcast, true
	case "member":
		return AffiliationMember, true
	case "admin":
		return AffiliationAdmin, true
	case "owner":
		return AffiliationOwner, true
	}
	return AffiliationNone, false
}

// String returns the wire form of the affiliation.
func (a Affiliation) String() string {
	switch a {
	case AffiliationOutcast:
		return "outcast"
	case AffiliationMember:
		return "member"
	case AffiliationAdmin:
		return "admin"
	case AffiliationOwner:
		return "owner"
	}
	return "none"
}

// Role is a user's in-room permission level, lasting for one visit.
type Role uint8

const (
	RoleNone Role = iota
	RoleVisitor
	RoleParticipant
	RoleModerator
)

// ParseRole maps the wire form onto a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "none", "":
		return RoleNone, true
	case "visitor":
		return RoleVisitor, true
	case "participant":
		return RoleParticipant, true
	case "moderator":
		return RoleModerator, true
	}
	return RoleNone, false
}

// String returns the wire form of the role.
func (r Role) String() string {
	switch r {
	case RoleVisitor:
		return "visitor"
	case RoleParticipant:
		return "participant"
	case RoleModerator:
		return "moderator"
	}
	return "none"
}

// RoomOccupant is one user currently present in a room.
type RoomOccupant struct {
	// JID is the occupant address within the room; its resourcepart is the
	// nick.
	JID jid.JID

	Nick string

	// RealJID is the occupant's actual address when the room discloses it.
	RealJID jid.JID

	Affiliation Affiliation
	Role        Role
}

// OccupantChangeType is a transition in the per-occupant state machine.
// All transitions except OccupantChangedNick and OccupantModified remove the
// occupant from the room.
type OccupantChangeType uint8

const (
	OccupantJoined OccupantChangeType = iota
	OccupantLeft
	OccupantKicked
	OccupantBanned
	OccupantLostMembership
	OccupantRoomMemberOnly
	OccupantLeftOnConnectionError
	OccupantChangedNick
	OccupantModified
)

// String returns a short name for the transition.
func (t OccupantChangeType) String() string {
	switch t {
	case OccupantJoined:
		return "joined"
	case OccupantLeft:
		return "left"
	case OccupantKicked:
		return "kicked"
	case OccupantBanned:
		return "banned"
	case OccupantLostMembership:
		return "lostMembership"
	case OccupantRoomMemberOnly:
		return "roomMemberOnly"
	case OccupantLeftOnConnectionError:
		return "leftOnConnectionError"
	case OccupantChangedNick:
		return "changedNick"
	case OccupantModified:
		return "modified"
	}
	return "unknown"
}

// Removes reports whether the transition removes the occupant from the
// room's occupant map.
func (t OccupantChangeType) Removes() bool {
	switch t {
	case OccupantJoined, OccupantChangedNick, OccupantModified:
		return false
	}
	return true
}

// OccupantChange is one applied occupant transition.
type OccupantChange struct {
	Occupant RoomOccupant
	Change   OccupantChangeType

	// NewNick carries the new nick for OccupantChangedNick transitions.
	NewNick string

	// IsSelf is set when the transition concerns the current user.
	IsSelf bool
}

// RoomInfo is the discovered configuration of a room.
type RoomInfo struct {
	Name        string
	Description string

	Public       bool
	MembersOnly  bool
	NonAnonymous bool
	Persistent   bool
	Moderated    bool
}

// Room is one multi-user chat room identified by its bare JID.
type Room struct {
	addr jid.JID

	// Name is the discovered or configured room name.
	Name string

	// Info is the room configuration discovered via service discovery, nil
	// until discovered.
	Info *RoomInfo

	occupantJID *obs.Value[jid.JID]
	subject     *obs.Value[string]
	messages    *MessageStore
	changes     *obs.Stream[OccupantChange]

	mu        sync.Mutex
	occupants map[string]RoomOccupant
}

// NewRoom creates a room for the bare form of addr.
func NewRoom(addr jid.JID) *Room {
	return &Room{
		addr:        addr.Bare(),
		occupantJID: obs.NewValue(jid.JID{}),
		subject:     obs.NewValue(""),
		messages:    NewMessageStore(),
		changes:     obs.NewStream[OccupantChange](),
		occupants:   make(map[string]RoomOccupant),
	}
}

// JID returns the room's bare address.
func (r *Room) JID() jid.JID {
	return r.addr
}

// RecipientJID satisfies Recipient.
func (r *Room) RecipientJID() jid.JID {
	return r.addr
}

// Messages satisfies Recipient.
func (r *Room) Messages() *MessageStore {
	return r.messages
}

// OccupantJID is the current user's reactive full address within the room;
// its resourcepart is the current nick.
func (r *Room) OccupantJID() *obs.Value[jid.JID] {
	return r.occupantJID
}

// Nick returns the current user's nick in the room.
func (r *Room) Nick() string {
	return r.occupantJID.Get().Resourcepart
}

// Subject is the reactive room subject.
func (r *Room) Subject() *obs.Value[string] {
	return r.subject
}

// OccupantChanges is the stream of applied occupant transitions.
func (r *Room) OccupantChanges() *obs.Stream[OccupantChange] {
	return r.changes
}

// occupantKey identifies an occupant across nick changes: the real bare JID
// when the room discloses it, the in-room address otherwise.
func occupantKey(o RoomOccupant) string {
	if !o.RealJID.IsZero() {
		return o.RealJID.Bare().String()
	}
	return o.JID.String()
}

// Occupants returns a copy of the current occupant list.
func (r *Room) Occupants() []RoomOccupant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomOccupant, 0, len(r.occupants))
	for _, o := range r.occupants {
		out = append(out, o)
	}
	return out
}

// OccupantByNick looks up an occupant by its in-room nick.
func (r *Room) OccupantByNick(nick string) (RoomOccupant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.occupants {
		if o.Nick == nick {
			return o, true
		}
	}
	return RoomOccupant{}, false
}

// OccupantCount returns the number of tracked occupants.
func (r *Room) OccupantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.occupants)
}

// ApplyOccupantChange runs one transition of the occupant state machine and
// publishes it.
//
// Joining and modification upsert the occupant. A nick change repoints the
// occupant JID's resourcepart. Every removing transition deletes the
// occupant; if the transition concerns the current user the whole occupant
// map is cleared, since the room is no longer observable.
func (r *Room) ApplyOccupantChange(occ RoomOccupant, change OccupantChangeType, isSelf bool, newNick string) {
	r.mu.Lock()
	key := occupantKey(occ)
	switch {
	case change == OccupantChangedNick:
		delete(r.occupants, key)
		occ.Nick = newNick
		if rejid, err := occ.JID.WithResource(newNick); err == nil {
			occ.JID = rejid
		}
		r.occupants[occupantKey(occ)] = occ
	case change.Removes():
		if isSelf {
			r.occupants = make(map[string]RoomOccupant)
		} else {
			delete(r.occupants, key)
		}
	default:
		r.occupants[key] = occ
	}
	r.mu.Unlock()

	if isSelf && change == OccupantChangedNick {
		r.occupantJID.Set(occ.JID)
	}
	r.changes.Publish(OccupantChange{
		Occupant: occ,
		Change:   change,
		NewNick:  newNick,
		IsSelf:   isSelf,
	})
}
