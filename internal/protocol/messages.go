// Package protocol defines the JSON wire messages exchanged between
// party clients and the relay. Both the app layer (host succession
// broadcasts) and the websocket adapter encode with these types, so the
// vocabulary lives in one place.
package protocol

import (
	"encoding/json"

	"github.com/elie00/stream-party-sub001/internal/domain"
	"github.com/elie00/stream-party-sub001/internal/playsync"
)

const (
	// Client → relay.
	TypeJoin   = "join"
	TypeLeave  = "leave"
	TypeRename = "rename"
	TypeWhoAmI = "whoami"
	TypePing   = "ping"
	TypeResync = "resync"

	// Host → relay → peers (and relay → host for resync).
	TypeSnapshot      = "snapshot"
	TypePlay          = "play"
	TypePause         = "pause"
	TypeSeek          = "seek"
	TypeSourceChanged = "source_changed"

	// Relay → client.
	TypeRoomState   = "room_state"
	TypeRoleChanged = "role_changed"
	TypeLeft        = "left"
	TypePong        = "pong"
	TypeError       = "error"
)

// Envelope is the minimal frame read first to dispatch on Type.
type Envelope struct {
	Type string `json:"type"`
}

type SnapshotMsg struct {
	Type string `json:"type"`
	playsync.Snapshot
}

// EventMsg carries a discrete host action; Type doubles as the event
// kind (play/pause/seek/source_changed).
type EventMsg struct {
	Type       string  `json:"type"`
	Position   float64 `json:"position"`
	ContentRef string  `json:"content_ref,omitempty"`
}

func (m EventMsg) Event() playsync.Event {
	return playsync.Event{Kind: playsync.EventKind(m.Type), Position: m.Position, ContentRef: m.ContentRef}
}

type ResyncMsg struct {
	Type string        `json:"type"`
	From domain.UserID `json:"from,omitempty"`
}

// RoleChangedMsg announces the new host seat to everyone in the room.
// Each client compares HostID with its own id to pick its role.
type RoleChangedMsg struct {
	Type     string        `json:"type"`
	HostID   domain.UserID `json:"host_id"`
	Username string        `json:"username,omitempty"`
}

func EncodeSnapshot(s playsync.Snapshot) ([]byte, error) {
	return json.Marshal(SnapshotMsg{Type: TypeSnapshot, Snapshot: s})
}

func EncodeEvent(ev playsync.Event) ([]byte, error) {
	return json.Marshal(EventMsg{Type: string(ev.Kind), Position: ev.Position, ContentRef: ev.ContentRef})
}

func EncodeResync(from domain.UserID) ([]byte, error) {
	return json.Marshal(ResyncMsg{Type: TypeResync, From: from})
}

func EncodeRoleChanged(hostID domain.UserID, username string) ([]byte, error) {
	return json.Marshal(RoleChangedMsg{Type: TypeRoleChanged, HostID: hostID, Username: username})
}
