package app

import "github.com/elie00/stream-party-sub001/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to members whose send buffer is full.
// Playback sync tolerates loss (the next snapshot recovers), so
// dropping frames is acceptable; kicking is for members that never
// drain.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// DropPolicy drops the frame and keeps the member: a peer that misses
// one snapshot converges again on the next one.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction {
	return DropFrame
}

// KickPolicy evicts slow members outright.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction {
	return KickMember
}
