package domain

type (
	RoomName string
	RoomID   string
)

// Room is a watch-party session. The host seat (which member is
// authoritative for playback) is tracked by the core room service,
// not here; the room itself is only identity.
type Room struct {
	ID   RoomID
	Name RoomName
}
