// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza_test

import (
	"encoding/xml"
	"testing"

	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

func xmlName(space, local string) xml.Name {
	return xml.Name{Space: space, Local: local}
}

func TestParseResolvesNamespaces(t *testing.T) {
	el, err := stanza.Parse(`<message xmlns="jabber:client" type="chat" from="a@example.net" to="b@example.net" id="m1"><body>hello</body><x xmlns="jabber:x:conference" jid="room@muc.example.net"/></message>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if el.Kind() != stanza.KindMessage {
		t.Errorf("Kind = %v, want KindMessage", el.Kind())
	}
	if got := el.ChildText("body"); got != "hello" {
		t.Errorf("body = %q", got)
	}
	// The body inherits the stanza namespace from the stream.
	if body := el.ChildNS("jabber:client", "body"); body == nil {
		t.Error("body did not inherit jabber:client")
	}
	if !el.HasChildNS("jabber:x:conference", "x") {
		t.Error("conference child namespace not resolved")
	}
	if el.ID() != "m1" || el.Type() != "chat" {
		t.Errorf("attributes not preserved: id=%q type=%q", el.ID(), el.Type())
	}
}

func TestStringRoundTrip(t *testing.T) {
	el := stanza.NewIQ(stanza.GetIQ, jid.MustParse("example.net")).
		SetAttr("id", "q1").
		Append(stanza.New(xmlName("jabber:iq:roster", "query")))

	parsed, err := stanza.Parse(el.String())
	if err != nil {
		t.Fatalf("Parse(String()): %v", err)
	}
	if parsed.Name.Local != "iq" || parsed.ID() != "q1" || parsed.Type() != "get" {
		t.Errorf("round trip lost stanza attributes: %s", parsed)
	}
	if parsed.ChildNS("jabber:iq:roster", "query") == nil {
		t.Errorf("round trip lost the namespaced payload: %s", parsed)
	}
}

func TestKindOf(t *testing.T) {
	for _, tc := range []struct {
		local string
		want  stanza.Kind
	}{
		{"iq", stanza.KindIQ},
		{"message", stanza.KindMessage},
		{"presence", stanza.KindPresence},
		{"stream", stanza.KindOther},
	} {
		el := stanza.New(xmlName("", tc.local))
		if got := el.Kind(); got != tc.want {
			t.Errorf("KindOf(%q) = %v, want %v", tc.local, got, tc.want)
		}
	}
}

func TestSetAttrReplaces(t *testing.T) {
	el := stanza.New(xmlName("", "iq")).SetAttr("id", "a").SetAttr("id", "b")
	if got := el.ID(); got != "b" {
		t.Errorf("id = %q, want replaced value", got)
	}
	if len(el.Attr) != 1 {
		t.Errorf("SetAttr appended instead of replacing: %v", el.Attr)
	}
}

func TestUnmarshalError(t *testing.T) {
	el, err := stanza.Parse(`<iq xmlns="jabber:client" type="error" id="q1"><error type="cancel" code="404"><item-not-found xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/><text xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">no such node</text></error></iq>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stErr, ok := stanza.UnmarshalError(el)
	if !ok {
		t.Fatal("UnmarshalError found no error payload")
	}
	if stErr.Condition != stanza.ItemNotFound {
		t.Errorf("Condition = %q", stErr.Condition)
	}
	if stErr.Type != stanza.Cancel {
		t.Errorf("Type = %q", stErr.Type)
	}
	if stErr.Code != 404 {
		t.Errorf("Code = %d", stErr.Code)
	}
	if stErr.Text != "no such node" {
		t.Errorf("Text = %q", stErr.Text)
	}
}

func TestUnmarshalErrorAbsent(t *testing.T) {
	el, err := stanza.Parse(`<iq xmlns="jabber:client" type="result" id="q1"/>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := stanza.UnmarshalError(el); ok {
		t.Error("UnmarshalError reported an error payload on a clean result")
	}
}

func TestNewErrorRoundTrip(t *testing.T) {
	msg := stanza.NewMessage(stanza.ErrorMessage, jid.MustParse("a@example.net")).
		Append(stanza.NewError(stanza.Modify, stanza.BadRequest, "bad body"))
	stErr, ok := stanza.UnmarshalError(msg)
	if !ok {
		t.Fatal("built error payload not recognized")
	}
	if stErr.Condition != stanza.BadRequest || stErr.Type != stanza.Modify || stErr.Text != "bad body" {
		t.Errorf("round trip mangled the error: %+v", stErr)
	}
}
