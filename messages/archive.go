// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package messages

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

const defaultPageSize = 20

// archiveCursor tracks how far back a recipient's archive has been paged.
type archiveCursor struct {
	// firstID is the archive ID of the oldest loaded message; the next page
	// ends before it.
	firstID string

	// complete is set once the server reported the walk reached the start of
	// the archive.
	complete bool
}

// LoadMostRecentUnloadedMessages loads one archive page older than anything
// loaded so far for the recipient.
// The first call loads the newest page. Results flow through the regular
// normalization pipeline with the archive flag set, so no live
// notifications fire.
func (p *Plugin) LoadMostRecentUnloadedMessages(ctx context.Context, recipient chat.Recipient) error {
	key := recipient.RecipientJID().String()
	p.mu.Lock()
	cursor := p.cursors[key]
	p.mu.Unlock()
	if cursor.complete {
		return nil
	}

	cursor, err := p.loadPage(ctx, recipient, cursor)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cursors[key] = cursor
	p.mu.Unlock()
	return nil
}

// LoadCompleteHistory pages backwards until the server reports the start of
// the recipient's archive.
func (p *Plugin) LoadCompleteHistory(ctx context.Context, recipient chat.Recipient) error {
	for {
		key := recipient.RecipientJID().String()
		p.mu.Lock()
		cursor := p.cursors[key]
		p.mu.Unlock()
		if cursor.complete {
			return nil
		}
		if err := p.LoadMostRecentUnloadedMessages(ctx, recipient); err != nil {
			return err
		}
	}
}

// loadPage issues one MAM query page ending before the cursor.
// Room archives are queried at the room; contact archives at the user's own
// server, filtered by correspondent.
func (p *Plugin) loadPage(ctx context.Context, recipient chat.Recipient, cursor archiveCursor) (archiveCursor, error) {
	query := stanza.New(xml.Name{Space: NSMAM, Local: "query"},
		xml.Attr{Name: xml.Name{Local: "queryid"}, Value: uuid.NewString()},
	)

	target := jid.JID{}
	if _, isRoom := recipient.(*chat.Room); isRoom {
		target = recipient.RecipientJID()
	} else {
		form := stanza.New(xml.Name{Space: nsXData, Local: "x"},
			xml.Attr{Name: xml.Name{Local: "type"}, Value: "submit"}).Append(
			mamField("FORM_TYPE", NSMAM),
			mamField("with", recipient.RecipientJID().String()),
		)
		query.Append(form)
	}

	// Paging backwards: an empty before requests the newest page.
	set := stanza.New(xml.Name{Space: NSRSM, Local: "set"}).Append(
		stanza.Text("max", strconv.Itoa(p.pageSize)),
		stanza.Text("before", cursor.firstID),
	)
	query.Append(set)

	iq := stanza.NewIQ(stanza.SetIQ, target).Append(query)
	resp, err := p.conn.SendIQ(ctx, iq)
	if err != nil {
		return cursor, fmt.Errorf("loading archive for %s: %w", recipient.RecipientJID(), err)
	}

	fin := resp.ChildNS(NSMAM, "fin")
	if fin == nil {
		cursor.complete = true
		return cursor, nil
	}
	if complete, _ := strconv.ParseBool(fin.Attribute("complete")); complete {
		cursor.complete = true
	}
	set = fin.ChildNS(NSRSM, "set")
	if set == nil {
		// Without a result set there is no cursor to page before; treating
		// the walk as finished keeps a degenerate reply from looping forever.
		cursor.complete = true
		return cursor, nil
	}
	if first := set.ChildText("first"); first != "" {
		cursor.firstID = first
	} else if !cursor.complete {
		// An empty page without a completion marker still ends the walk.
		cursor.complete = true
	}
	return cursor, nil
}

func mamField(name, value string) *stanza.Element {
	return stanza.New(xml.Name{Local: "field"},
		xml.Attr{Name: xml.Name{Local: "var"}, Value: name},
	).Append(stanza.Text("value", value))
}
