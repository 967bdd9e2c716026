// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package muc_test

import (
	"context"
	"testing"
	"time"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/internal/xmpptest"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/muc"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

var (
	me       = jid.MustParse("me@example.net/desktop")
	roomAddr = jid.MustParse("room@muc.example.net")
)

func newPlugin(t *testing.T) (*muc.Plugin, *xmpptest.Conn) {
	t.Helper()
	conn := xmpptest.NewConn(me)
	p := muc.New()
	p.Register(conn)
	return p, conn
}

func mustParseStanza(t *testing.T, s string) *stanza.Element {
	t.Helper()
	el, err := stanza.Parse(s)
	if err != nil {
		t.Fatalf("parse stanza: %v", err)
	}
	return el
}

// reflectJoin makes the fake connection answer every directed room presence
// with the server's self-presence reflection.
func reflectJoin(t *testing.T, conn *xmpptest.Conn) {
	conn.OnSend = func(el *stanza.Element) {
		if el.Name.Local != "presence" || el.Type() != "" {
			return
		}
		reflection := mustParseStanza(t, `<presence xmlns="jabber:client" from="`+el.To()+`">
			<x xmlns="http://jabber.org/protocol/muc#user">
				<item affiliation="member" role="participant"/>
				<status code="110"/>
			</x></presence>`)
		conn.Deliver(reflection)
	}
}

func TestJoinRoomResolvesOnReflection(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)

	r, err := p.JoinRoom(context.Background(), roomAddr, "me")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if got := r.Nick(); got != "me" {
		t.Errorf("Nick = %q", got)
	}
	if got := r.OccupantCount(); got != 1 {
		t.Errorf("OccupantCount = %d, want the self occupant", got)
	}

	join := conn.Sent()[0]
	if join.To() != "room@muc.example.net/me" {
		t.Errorf("join presence to %q", join.To())
	}
	if !join.HasChildNS(muc.NS, "x") {
		t.Errorf("join presence missing muc marker: %v", join)
	}
}

func TestJoinRoomTimesOutWithoutReflection(t *testing.T) {
	p, _ := newPlugin(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.JoinRoom(ctx, roomAddr, "me"); err == nil {
		t.Fatal("JoinRoom resolved without the server reflection")
	}
}

func TestOccupantKickedOther(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)
	r, err := p.JoinRoom(context.Background(), roomAddr, "me")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	conn.OnSend = nil

	join := mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/toby">
		<x xmlns="http://jabber.org/protocol/muc#user"><item affiliation="member" role="participant"/></x></presence>`)
	conn.Deliver(join)
	if got := r.OccupantCount(); got != 2 {
		t.Fatalf("OccupantCount = %d", got)
	}

	var changes []chat.OccupantChange
	defer r.OccupantChanges().Subscribe(func(c chat.OccupantChange) { changes = append(changes, c) })()

	kick := mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/toby" type="unavailable">
		<x xmlns="http://jabber.org/protocol/muc#user">
			<item affiliation="none" role="none"/>
			<status code="307"/>
		</x></presence>`)
	conn.Deliver(kick)

	if got := r.OccupantCount(); got != 1 {
		t.Errorf("OccupantCount = %d, only the kicked occupant may be removed", got)
	}
	if len(changes) != 1 || changes[0].Change != chat.OccupantKicked || changes[0].IsSelf {
		t.Errorf("changes = %+v", changes)
	}
}

func TestSelfBanClearsRoom(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)
	r, err := p.JoinRoom(context.Background(), roomAddr, "me")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	conn.OnSend = nil
	conn.Deliver(mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/toby">
		<x xmlns="http://jabber.org/protocol/muc#user"><item affiliation="member" role="participant"/></x></presence>`))

	ban := mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/me" type="unavailable">
		<x xmlns="http://jabber.org/protocol/muc#user">
			<item affiliation="outcast" role="none"/>
			<status code="110"/><status code="301"/>
		</x></presence>`)
	conn.Deliver(ban)

	if got := r.OccupantCount(); got != 0 {
		t.Errorf("OccupantCount = %d, self ban must clear the whole room", got)
	}
	if !r.OccupantJID().Get().IsZero() {
		t.Errorf("occupant JID not cleared: %v", r.OccupantJID().Get())
	}
}

func TestLeaveRoomAwaitsReflection(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)
	if _, err := p.JoinRoom(context.Background(), roomAddr, "me"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	conn.OnSend = func(el *stanza.Element) {
		if el.Type() != "unavailable" {
			return
		}
		conn.Deliver(mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/me" type="unavailable">
			<x xmlns="http://jabber.org/protocol/muc#user">
				<item affiliation="member" role="none"/>
				<status code="110"/>
			</x></presence>`))
	}
	if err := p.LeaveRoom(context.Background(), roomAddr, "bye"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
}

func TestNickChange(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)
	r, err := p.JoinRoom(context.Background(), roomAddr, "me")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	conn.OnSend = nil

	conn.Deliver(mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/me" type="unavailable">
		<x xmlns="http://jabber.org/protocol/muc#user">
			<item affiliation="member" role="participant" nick="myself"/>
			<status code="110"/><status code="303"/>
		</x></presence>`))

	if got := r.Nick(); got != "myself" {
		t.Errorf("Nick = %q after rename", got)
	}
	if got := r.OccupantCount(); got != 1 {
		t.Errorf("OccupantCount = %d after rename", got)
	}
}

func TestGroupchatMessageRouting(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)
	r, err := p.JoinRoom(context.Background(), roomAddr, "me")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	conn.OnSend = nil

	var live []muc.RoomMessage
	defer p.Messages().Subscribe(func(m muc.RoomMessage) { live = append(live, m) })()

	msg := mustParseStanza(t, `<message xmlns="jabber:client" type="groupchat" id="g1"
		from="room@muc.example.net/toby" to="me@example.net"><body>hello room</body></message>`)
	handled, err := conn.Deliver(msg)
	if err != nil || !handled {
		t.Fatalf("Deliver: handled=%v err=%v", handled, err)
	}

	msgs := r.Messages().Messages()
	if len(msgs) != 1 || msgs[0].Body != "hello room" || msgs[0].Direction != chat.DirectionIn {
		t.Fatalf("room store = %+v", msgs)
	}
	if len(live) != 1 {
		t.Errorf("live stream saw %d messages", len(live))
	}

	// Reflection of an own message resolves by nick as outbound and does not
	// notify.
	own := mustParseStanza(t, `<message xmlns="jabber:client" type="groupchat" id="g2"
		from="room@muc.example.net/me" to="me@example.net"><body>my own</body></message>`)
	conn.Deliver(own)
	if got := r.Messages().Len(); got != 2 {
		t.Fatalf("store len = %d", got)
	}
	last, _ := r.Messages().Last()
	if last.Direction != chat.DirectionOut {
		t.Errorf("own reflection direction = %v", last.Direction)
	}
	if len(live) != 1 {
		t.Errorf("own reflection notified: %d", len(live))
	}
}

func TestSubjectChange(t *testing.T) {
	p, conn := newPlugin(t)
	subject := mustParseStanza(t, `<message xmlns="jabber:client" type="groupchat"
		from="room@muc.example.net/toby"><subject>new topic</subject></message>`)
	if _, err := conn.Deliver(subject); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	r, ok := p.Room(roomAddr)
	if !ok {
		t.Fatal("room not created for subject message")
	}
	if got := r.Subject().Get(); got != "new topic" {
		t.Errorf("Subject = %q", got)
	}
}

func TestMediatedInvitation(t *testing.T) {
	p, conn := newPlugin(t)
	var invites []chat.RoomInvitation
	defer p.Invitations().Subscribe(func(i chat.RoomInvitation) { invites = append(invites, i) })()

	msg := mustParseStanza(t, `<message xmlns="jabber:client" from="room@muc.example.net" to="me@example.net">
		<x xmlns="http://jabber.org/protocol/muc#user">
			<invite from="toby@example.net/desk"><reason>join us</reason></invite>
			<password>secret</password>
		</x></message>`)
	handled, err := conn.Deliver(msg)
	if err != nil || !handled {
		t.Fatalf("Deliver: handled=%v err=%v", handled, err)
	}
	if len(invites) != 1 {
		t.Fatalf("invites = %d", len(invites))
	}
	inv := invites[0]
	if !inv.RoomJID.Equal(roomAddr) || inv.Direct {
		t.Errorf("invitation = %+v", inv)
	}
	if inv.Password != "secret" || inv.Reason != "join us" {
		t.Errorf("invitation detail = %+v", inv)
	}
}

func TestDirectInvitation(t *testing.T) {
	p, conn := newPlugin(t)
	var invites []chat.RoomInvitation
	defer p.Invitations().Subscribe(func(i chat.RoomInvitation) { invites = append(invites, i) })()

	msg := mustParseStanza(t, `<message xmlns="jabber:client" from="toby@example.net/desk" to="me@example.net">
		<x xmlns="jabber:x:conference" jid="room@muc.example.net" reason="come"/></message>`)
	if _, err := conn.Deliver(msg); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(invites) != 1 || !invites[0].Direct || !invites[0].RoomJID.Equal(roomAddr) {
		t.Fatalf("invites = %+v", invites)
	}
}

func TestKickSendsRoleIQ(t *testing.T) {
	p, conn := newPlugin(t)
	if err := p.KickFromRoom(context.Background(), roomAddr, "toby", "enough"); err != nil {
		t.Fatalf("KickFromRoom: %v", err)
	}
	iq := conn.Last()
	query := iq.ChildNS(muc.NSAdmin, "query")
	if query == nil {
		t.Fatalf("no admin query: %v", iq)
	}
	item := query.Child("item")
	if item.Attribute("nick") != "toby" || item.Attribute("role") != "none" {
		t.Errorf("kick item = %v", item)
	}
	if item.ChildText("reason") != "enough" {
		t.Errorf("reason = %q", item.ChildText("reason"))
	}
}

func TestBanSendsAffiliationIQ(t *testing.T) {
	p, conn := newPlugin(t)
	if err := p.BanUser(context.Background(), roomAddr, jid.MustParse("toby@example.net/desk"), ""); err != nil {
		t.Fatalf("BanUser: %v", err)
	}
	item := conn.Last().ChildNS(muc.NSAdmin, "query").Child("item")
	if item.Attribute("jid") != "toby@example.net" || item.Attribute("affiliation") != "outcast" {
		t.Errorf("ban item = %v", item)
	}
}

func TestChangeRoomSubjectSendsGroupchat(t *testing.T) {
	p, conn := newPlugin(t)
	if err := p.ChangeRoomSubject(roomAddr, "topic"); err != nil {
		t.Fatalf("ChangeRoomSubject: %v", err)
	}
	msg := conn.Last()
	if msg.Type() != "groupchat" || msg.ChildText("subject") != "topic" {
		t.Errorf("subject message = %v", msg)
	}
}

func TestQueryAllRoomsDiscoWalk(t *testing.T) {
	p, conn := newPlugin(t)
	conn.Respond(func(el *stanza.Element) *stanza.Element {
		switch {
		case el.ChildNS("http://jabber.org/protocol/disco#items", "query") != nil && el.To() == "example.net":
			return mustParseStanza(t, `<iq xmlns="jabber:client" type="result" id="`+el.ID()+`">
				<query xmlns="http://jabber.org/protocol/disco#items">
					<item jid="muc.example.net"/>
				</query></iq>`)
		case el.ChildNS("http://jabber.org/protocol/disco#info", "query") != nil && el.To() == "muc.example.net":
			return mustParseStanza(t, `<iq xmlns="jabber:client" type="result" id="`+el.ID()+`">
				<query xmlns="http://jabber.org/protocol/disco#info">
					<identity category="conference" type="text" name="Chatrooms"/>
					<feature var="http://jabber.org/protocol/muc"/>
				</query></iq>`)
		case el.ChildNS("http://jabber.org/protocol/disco#items", "query") != nil:
			return mustParseStanza(t, `<iq xmlns="jabber:client" type="result" id="`+el.ID()+`">
				<query xmlns="http://jabber.org/protocol/disco#items">
					<item jid="room@muc.example.net"/>
				</query></iq>`)
		case el.ChildNS("http://jabber.org/protocol/disco#info", "query") != nil:
			return mustParseStanza(t, `<iq xmlns="jabber:client" type="result" id="`+el.ID()+`">
				<query xmlns="http://jabber.org/protocol/disco#info">
					<identity category="conference" type="text" name="The Room"/>
					<feature var="muc_persistent"/>
					<feature var="muc_public"/>
					<x xmlns="jabber:x:data" type="result">
						<field var="muc#roominfo_description"><value>talk</value></field>
					</x>
				</query></iq>`)
		}
		return nil
	})

	if err := p.OnOnline(context.Background()); err != nil {
		t.Fatalf("OnOnline: %v", err)
	}
	if got := p.Service(); got.Domainpart != "muc.example.net" {
		t.Fatalf("Service = %v", got)
	}

	rooms := p.Rooms().Get()
	if len(rooms) != 1 {
		t.Fatalf("rooms = %d", len(rooms))
	}
	r := rooms[0]
	if r.Name != "The Room" || r.Info == nil {
		t.Fatalf("room metadata missing: %+v", r)
	}
	if !r.Info.Persistent || !r.Info.Public || r.Info.MembersOnly {
		t.Errorf("room info = %+v", r.Info)
	}
	if r.Info.Description != "talk" {
		t.Errorf("description = %q", r.Info.Description)
	}
}

func TestCreateRoomSubmitsConfigForm(t *testing.T) {
	p, conn := newPlugin(t)
	reflectJoin(t, conn)

	r, err := p.CreateRoom(context.Background(), muc.RoomCreationOptions{
		RoomID:         "den",
		Service:        jid.MustParse("muc.example.net"),
		Name:           "The Den",
		PersistentRoom: true,
		NonAnonymous:   true,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if !r.JID().Equal(jid.MustParse("den@muc.example.net")) {
		t.Errorf("room JID = %v", r.JID())
	}

	var config *stanza.Element
	for _, el := range conn.Sent() {
		if el.ChildNS(muc.NSOwner, "query") != nil {
			config = el
		}
	}
	if config == nil {
		t.Fatal("no owner config submitted")
	}
	form := config.ChildNS(muc.NSOwner, "query").Child("x")
	fields := make(map[string]string)
	for _, f := range form.ChildrenNamed("field") {
		fields[f.Attribute("var")] = f.ChildText("value")
	}
	if fields["muc#roomconfig_persistentroom"] != "1" {
		t.Errorf("persistent field = %q", fields["muc#roomconfig_persistentroom"])
	}
	if fields["muc#roomconfig_whois"] != "anyone" {
		t.Errorf("whois field = %q", fields["muc#roomconfig_whois"])
	}
	if fields["muc#roomconfig_roomname"] != "The Den" {
		t.Errorf("name field = %q", fields["muc#roomconfig_roomname"])
	}
}
