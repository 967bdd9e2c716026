// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package chat

import "github.com/pazznetwork/ngx-chat-sub002/jid"

// RoomInvitation is a received invitation into a room, either mediated (sent
// through the room) or direct (sent from the inviter's own account).
type RoomInvitation struct {
	RoomJID jid.JID
	From    jid.JID

	Password string
	Reason   string

	// Direct is set for jabber:x:conference invitations.
	Direct bool
}
