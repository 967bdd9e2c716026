// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package muc

import (
	"context"
	"testing"

	"github.com/pazznetwork/ngx-chat-sub002/internal/xmpptest"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
)

func TestFailedJoinDeregistersWaiter(t *testing.T) {
	conn := xmpptest.NewConn(jid.MustParse("me@example.net/desktop"))
	p := New()
	p.Register(conn)
	room := jid.MustParse("den@muc.example.net")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.JoinRoom(ctx, room, "feste"); err == nil {
		t.Fatal("join with a canceled context succeeded")
	}

	p.mu.Lock()
	waiters := len(p.joinWaiters[room.String()])
	p.mu.Unlock()
	if waiters != 0 {
		t.Errorf("join waiters left registered: %d", waiters)
	}
}

func TestFailedLeaveDeregistersWaiter(t *testing.T) {
	conn := xmpptest.NewConn(jid.MustParse("me@example.net/desktop"))
	p := New()
	p.Register(conn)
	room := jid.MustParse("den@muc.example.net")

	occupant, err := room.WithResource("feste")
	if err != nil {
		t.Fatal(err)
	}
	p.GetOrCreateRoom(room).OccupantJID().Set(occupant)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.LeaveRoom(ctx, room, ""); err == nil {
		t.Fatal("leave with a canceled context succeeded")
	}

	p.mu.Lock()
	waiters := len(p.leaveWaiters[room.String()])
	p.mu.Unlock()
	if waiters != 0 {
		t.Errorf("leave waiters left registered: %d", waiters)
	}
}
