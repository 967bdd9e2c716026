// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package roster_test

import (
	"context"
	"testing"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/internal/xmpptest"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/roster"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

var me = jid.MustParse("me@example.net/desktop")

func newPlugin(t *testing.T) (*roster.Plugin, *xmpptest.Conn) {
	t.Helper()
	conn := xmpptest.NewConn(me)
	p := roster.New()
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

func TestFetchRosterOnOnline(t *testing.T) {
	p, conn := newPlugin(t)
	conn.Respond(func(el *stanza.Element) *stanza.Element {
		if el.ChildNS(roster.NS, "query") == nil {
			return nil
		}
		return mustParseStanza(t, `<iq xmlns="jabber:client" type="result" id="`+el.ID()+`">
			<query xmlns="jabber:iq:roster">
				<item jid="feste@example.net" name="Feste" subscription="both"/>
				<item jid="maria@example.net" subscription="to" ask="subscribe"/>
			</query></iq>`)
	})

	if err := p.OnOnline(context.Background()); err != nil {
		t.Fatalf("OnOnline: %v", err)
	}

	contacts := p.Contacts().Get()
	if len(contacts) != 2 {
		t.Fatalf("contacts = %d", len(contacts))
	}
	feste, ok := p.Contact(jid.MustParse("feste@example.net"))
	if !ok {
		t.Fatal("feste not found")
	}
	if feste.Name != "Feste" {
		t.Errorf("Name = %q", feste.Name)
	}
	if got := feste.Subscription().Get(); got != chat.SubscriptionBoth {
		t.Errorf("subscription = %v", got)
	}
	if got := p.ContactsSubscribed().Get(); len(got) != 2 {
		t.Errorf("subscribed view has %d entries", len(got))
	}
	if got := p.ContactRequestsSent().Get(); len(got) != 1 || !got[0].EqualsJID(jid.MustParse("maria@example.net")) {
		t.Errorf("requests sent view wrong: %v", got)
	}
}

func TestRosterPushUpsertPreservesIdentity(t *testing.T) {
	p, conn := newPlugin(t)
	c := p.GetOrCreateContact(jid.MustParse("feste@example.net"), "")
	if err := c.Messages().Add(chat.Message{ID: "m1", Body: "hi"}); err != nil {
		t.Fatal(err)
	}

	push := mustParseStanza(t, `<iq xmlns="jabber:client" type="set" id="p1">
		<query xmlns="jabber:iq:roster">
			<item jid="feste@example.net" name="Feste" subscription="from"/>
		</query></iq>`)
	handled, err := conn.Deliver(push)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !handled {
		t.Fatal("push not handled")
	}

	after, ok := p.Contact(jid.MustParse("feste@example.net"))
	if !ok {
		t.Fatal("contact lost")
	}
	if after != c {
		t.Error("push replaced the contact identity")
	}
	if after.Name != "Feste" {
		t.Errorf("Name = %q", after.Name)
	}
	if !after.Messages().Contains("m1") {
		t.Error("message store not preserved across push")
	}
	if got := after.Subscription().Get(); got != chat.SubscriptionFrom {
		t.Errorf("subscription = %v", got)
	}

	// Pushes must be acknowledged with a result IQ carrying the push ID.
	ack := conn.Last()
	if ack == nil || ack.Name.Local != "iq" || ack.Type() != "result" || ack.ID() != "p1" {
		t.Errorf("push not acknowledged: %v", ack)
	}
}

func TestRosterPushRemove(t *testing.T) {
	p, conn := newPlugin(t)
	p.GetOrCreateContact(jid.MustParse("feste@example.net"), "Feste")

	push := mustParseStanza(t, `<iq xmlns="jabber:client" type="set" id="p2">
		<query xmlns="jabber:iq:roster">
			<item jid="feste@example.net" subscription="remove"/>
		</query></iq>`)
	if _, err := conn.Deliver(push); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if _, ok := p.Contact(jid.MustParse("feste@example.net")); ok {
		t.Error("removed contact still present")
	}
	if got := p.Contacts().Get(); len(got) != 0 {
		t.Errorf("contacts view has %d entries", len(got))
	}
}

func TestAddContactSendsIQAndSubscribe(t *testing.T) {
	p, conn := newPlugin(t)
	if err := p.AddContact(context.Background(), jid.MustParse("feste@example.net/balcony")); err != nil {
		t.Fatalf("AddContact: %v", err)
	}

	sent := conn.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d stanzas", len(sent))
	}
	query := sent[0].ChildNS(roster.NS, "query")
	if query == nil || query.Child("item").Attribute("jid") != "feste@example.net" {
		t.Errorf("roster set wrong: %v", sent[0])
	}
	if sent[1].Name.Local != "presence" || sent[1].Type() != "subscribe" {
		t.Errorf("subscribe presence wrong: %v", sent[1])
	}
	if got := p.ContactRequestsSent().Get(); len(got) != 1 {
		t.Errorf("requests sent view has %d entries", len(got))
	}
}

func TestUnaffiliatedView(t *testing.T) {
	p, _ := newPlugin(t)
	// A stranger that messaged us: contact exists, no subscription, no
	// pending request.
	p.GetOrCreateContact(jid.MustParse("stranger@example.org"), "")

	got := p.ContactsUnaffiliated().Get()
	if len(got) != 1 || !got[0].EqualsJID(jid.MustParse("stranger@example.org")) {
		t.Fatalf("unaffiliated view wrong: %v", got)
	}

	// An inbound subscription request moves it out of unaffiliated.
	got[0].SetPendingIn(true)
	p.GetOrCreateContact(jid.MustParse("other@example.org"), "")
	if got := p.ContactsUnaffiliated().Get(); len(got) != 1 || !got[0].EqualsJID(jid.MustParse("other@example.org")) {
		t.Errorf("unaffiliated view after pending in: %v", got)
	}
}

func TestBlockingPartition(t *testing.T) {
	p, conn := newPlugin(t)
	p.GetOrCreateContact(jid.MustParse("feste@example.net"), "")
	p.GetOrCreateContact(jid.MustParse("maria@example.net"), "")

	if err := p.BlockJID(context.Background(), jid.MustParse("feste@example.net/balcony")); err != nil {
		t.Fatalf("BlockJID: %v", err)
	}
	req := conn.Last()
	block := req.ChildNS(roster.NSBlocking, "block")
	if block == nil || block.Child("item").Attribute("jid") != "feste@example.net" {
		t.Fatalf("block request wrong: %v", req)
	}

	// The local set updates on the server push, not the IQ result.
	push := mustParseStanza(t, `<iq xmlns="jabber:client" type="set" id="b1">
		<block xmlns="urn:xmpp:blocking"><item jid="feste@example.net"/></block></iq>`)
	if _, err := conn.Deliver(push); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if got := p.BlockedJIDs().Get(); len(got) != 1 || got[0] != "feste@example.net" {
		t.Fatalf("blocked jids = %v", got)
	}
	if got := p.BlockedContacts().Get(); len(got) != 1 || !got[0].EqualsJID(jid.MustParse("feste@example.net")) {
		t.Errorf("blocked contacts = %v", got)
	}
	if got := p.NotBlockedContacts().Get(); len(got) != 1 || !got[0].EqualsJID(jid.MustParse("maria@example.net")) {
		t.Errorf("not blocked contacts = %v", got)
	}

	unblock := mustParseStanza(t, `<iq xmlns="jabber:client" type="set" id="b2">
		<unblock xmlns="urn:xmpp:blocking"/></iq>`)
	if _, err := conn.Deliver(unblock); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := p.BlockedJIDs().Get(); len(got) != 0 {
		t.Errorf("blocked jids after unblock-all = %v", got)
	}
}

func TestBlockPushCanonicalizesJIDs(t *testing.T) {
	p, conn := newPlugin(t)
	p.GetOrCreateContact(jid.MustParse("feste@example.net"), "")

	push := mustParseStanza(t, `<iq xmlns="jabber:client" type="set" id="b3">
		<block xmlns="urn:xmpp:blocking"><item jid="Feste@Example.NET/Balcony"/></block></iq>`)
	if _, err := conn.Deliver(push); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := p.BlockedJIDs().Get(); len(got) != 1 || got[0] != "feste@example.net" {
		t.Fatalf("blocked jids = %v", got)
	}
	if got := p.BlockedContacts().Get(); len(got) != 1 || !got[0].EqualsJID(jid.MustParse("feste@example.net")) {
		t.Errorf("blocked contacts = %v", got)
	}

	unblock := mustParseStanza(t, `<iq xmlns="jabber:client" type="set" id="b4">
		<unblock xmlns="urn:xmpp:blocking"><item jid="FESTE@example.net"/></unblock></iq>`)
	if _, err := conn.Deliver(unblock); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := p.BlockedJIDs().Get(); len(got) != 0 {
		t.Errorf("blocked jids after unblock = %v", got)
	}
}

func TestPresenceUpdatesContact(t *testing.T) {
	p, conn := newPlugin(t)
	pres := mustParseStanza(t, `<presence xmlns="jabber:client" from="feste@example.net/balcony"><show>away</show></presence>`)
	if _, err := conn.Deliver(pres); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	c, ok := p.Contact(jid.MustParse("feste@example.net"))
	if !ok {
		t.Fatal("presence did not create the contact")
	}
	if got := c.Presence().Get(); got != chat.PresenceAway {
		t.Errorf("presence = %v", got)
	}

	offline := mustParseStanza(t, `<presence xmlns="jabber:client" from="feste@example.net/balcony" type="unavailable"/>`)
	if _, err := conn.Deliver(offline); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := c.Presence().Get(); got != chat.PresenceUnavailable {
		t.Errorf("presence = %v after unavailable", got)
	}
}

func TestSubscriptionRequestFlow(t *testing.T) {
	p, conn := newPlugin(t)
	req := mustParseStanza(t, `<presence xmlns="jabber:client" from="feste@example.net" type="subscribe"/>`)
	if _, err := conn.Deliver(req); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := p.ContactRequestsReceived().Get(); len(got) != 1 {
		t.Fatalf("requests received = %d", len(got))
	}

	if err := p.AcceptSubscription(jid.MustParse("feste@example.net")); err != nil {
		t.Fatalf("AcceptSubscription: %v", err)
	}
	if last := conn.Last(); last.Type() != "subscribed" {
		t.Errorf("accept sent %v", last)
	}
	c, _ := p.Contact(jid.MustParse("feste@example.net"))
	if got := c.Subscription().Get(); got != chat.SubscriptionFrom {
		t.Errorf("subscription = %v after accept", got)
	}
	if got := p.ContactRequestsReceived().Get(); len(got) != 0 {
		t.Errorf("requests received view not cleared: %d", len(got))
	}
}

func TestMUCUserPresenceIgnored(t *testing.T) {
	p, conn := newPlugin(t)
	pres := mustParseStanza(t, `<presence xmlns="jabber:client" from="room@muc.example.net/feste">
		<x xmlns="http://jabber.org/protocol/muc#user"/></presence>`)
	handled, err := conn.Deliver(pres)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if handled {
		t.Error("occupant presence must be left to the room plugin")
	}
	if _, ok := p.Contact(jid.MustParse("room@muc.example.net")); ok {
		t.Error("occupant presence created a roster contact")
	}
}

func TestOnOfflineResets(t *testing.T) {
	p, _ := newPlugin(t)
	p.GetOrCreateContact(jid.MustParse("feste@example.net"), "")
	p.OnOffline()
	if got := p.Contacts().Get(); len(got) != 0 {
		t.Errorf("contacts after offline = %d", len(got))
	}
	if _, ok := p.Contact(jid.MustParse("feste@example.net")); ok {
		t.Error("contact cache not reset")
	}
}
