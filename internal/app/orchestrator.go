package app

import (
	"github.com/rs/zerolog/log"

	"github.com/elie00/stream-party-sub001/internal/core"
	"github.com/elie00/stream-party-sub001/internal/domain"
	"github.com/elie00/stream-party-sub001/internal/playsync"
	"github.com/elie00/stream-party-sub001/internal/protocol"
)

// Orchestrator wires registry, rooms and policy together. It owns the
// host seat lifecycle (first member hosts, seat passes on departure)
// and routes playback traffic: host frames fan out to peers, resync
// requests travel the other way to the host only.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	Tunables playsync.Tunables
}

// Join moves sid into roomName, leaving any previous room first.
// Returns true when sid took the host seat (the room was empty or the
// seat was vacant).
func (o *Orchestrator) Join(sid core.SessionID, roomName domain.RoomName) bool {
	if prev, _, ok := o.Registry.RoomOf(sid); ok {
		o.KickBySID(sid)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left previous room")
	}
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return false
	}
	room := o.Rooms.GetOrCreate(roomName)
	room.AddMember(sid, session)
	o.Registry.UpdateRoom(sid, roomName)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomName)).Msg("joined room")

	if _, hasHost := room.Host(); !hasHost {
		o.seatHost(room, sid)
		return true
	}
	return false
}

// KickBySID removes the member from its room; if it held the host seat
// the longest-present remaining member inherits it.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room := o.Rooms.GetOrCreate(roomName)
	host, _ := room.Host()
	wasHost := host == sid

	room.RemoveMember(sid)
	o.Registry.RemoveRoom(sid)

	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(roomName)
		log.Info().Str("module", "app.orch").Str("room", string(roomName)).Msg("room emptied, stopped")
		return
	}
	if wasHost {
		if next, ok := room.OldestMember(); ok {
			o.seatHost(room, next)
		}
	}
}

// OnDisconnect is the transport teardown path.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.KickBySID(sid)
	o.Registry.Unbind(sid)
}

// seatHost moves the seat and announces it to the whole room, the new
// host included, so every engine can flip its role from one message.
func (o *Orchestrator) seatHost(room core.RoomService, sid core.SessionID) {
	if !room.SetHost(sid) {
		return
	}
	user := o.Registry.GetOrCreateUser(sid)
	frame, err := protocol.EncodeRoleChanged(user.ID, user.Username)
	if err != nil {
		log.Error().Str("module", "app.orch").Err(err).Msg("encode role change")
		return
	}
	// from="" so the new host receives the announcement too.
	res := room.Broadcast("", frame)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(room.Room().Name)).Int("notified", res.SentTo).Msg("host seated")
}

// OnPlaybackFrame relays a snapshot or discrete event from the host to
// every peer in its room. Frames from non-hosts are dropped: only the
// seat owner is authoritative, and a peer echoing corrections back
// must not become a second broadcaster.
func (o *Orchestrator) OnPlaybackFrame(sid core.SessionID, data core.Frame) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room := o.Rooms.GetOrCreate(roomName)
	if host, ok := room.Host(); !ok || host != sid {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Msg("playback frame from non-host dropped")
		return
	}

	res := room.Broadcast(sid, data)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			for _, snap := range o.Registry.MembersOfRoom(roomName) {
				if snap.Session == slow {
					o.KickBySID(snap.SID)
				}
			}
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

// OnResync forwards a fresh-snapshot request to the current host. No
// acknowledgement: the host's answer (or its next periodic snapshot)
// is the response, and losing the request is recoverable.
func (o *Orchestrator) OnResync(sid core.SessionID) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room := o.Rooms.GetOrCreate(roomName)
	user := o.Registry.GetOrCreateUser(sid)
	frame, err := protocol.EncodeResync(user.ID)
	if err != nil {
		log.Error().Str("module", "app.orch").Err(err).Msg("encode resync")
		return
	}
	if err := room.SendToHost(frame); err != nil {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Err(err).Msg("resync not delivered")
	}
}

// EvictRoom kicks everyone and stops the room.
func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	for _, snap := range o.Registry.MembersOfRoom(name) {
		o.KickBySID(snap.SID)
	}
	o.Rooms.StopRoom(name)
}
