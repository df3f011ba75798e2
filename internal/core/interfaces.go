package core

import "github.com/elie00/stream-party-sub001/internal/domain"

// Frame is a raw message payload already encoded for the wire.
type Frame []byte

type SessionID string

// PartyConnection abstracts the signaling transport of one member.
// Owned by the adapter; the adapter must Close() it.
type PartyConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Conn() PartyConnection
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	IsHost   bool          `json:"is_host"`
}

// RoomService is the core-facing API of a party room. It owns the
// membership set and the host seat but never touches transport
// resources and never runs sync logic.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)

	// Host returns the current host seat, if occupied.
	Host() (SessionID, bool)
	// SetHost moves the seat; false if sid is not a member.
	SetHost(sid SessionID) bool
	// OldestMember returns the longest-present member, used for host
	// succession when the seat empties.
	OldestMember() (SessionID, bool)

	Broadcast(from SessionID, data Frame) PublishResult
	// SendToHost delivers to the host seat only (resync requests).
	SendToHost(data Frame) error
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}
