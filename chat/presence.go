// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package chat holds the domain model that the protocol plugins maintain:
// contacts, rooms, messages, and presence.
package chat

// Presence is the availability of a contact or one of its resources.
// Values are ordered so that a higher value wins when reducing multiple
// resources into an overall presence.
type Presence uint8

const (
	// PresenceUnavailable means no resource of the entity is connected.
	PresenceUnavailable Presence = iota

	// PresenceAway means the entity is connected but marked away.
	PresenceAway

	// PresencePresent means the entity is connected and available.
	PresencePresent
)

// String returns the presentation name of the presence value.
func (p Presence) String() string {
	switch p {
	case PresenceAway:
		return "away"
	case PresencePresent:
		return "present"
	}
	return "unavailable"
}

// PresenceFromShow maps a presence stanza's availability and <show/> value
// onto a Presence.
func PresenceFromShow(available bool, show string) Presence {
	if !available {
		return PresenceUnavailable
	}
	switch show {
	case "away", "xa", "dnd":
		return PresenceAway
	}
	return PresencePresent
}

// ReducePresence folds per-resource presences into the overall presence:
// present beats away beats unavailable.
func ReducePresence(resources map[string]Presence) Presence {
	overall := PresenceUnavailable
	for _, p := range resources {
		if p > overall {
			overall = p
		}
	}
	return overall
}
