// Package playsync keeps the players of a watch party aligned. One member
// (the host) owns the authoritative playback position; every peer
// continuously re-aligns its local player to the host's reported state,
// compensating for delivery delay. The package is transport-agnostic:
// inbound messages are handed to an Engine, outbound ones go through a Sink.
package playsync

import (
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
)

var (
	ErrSnapshotInvalid = errors.New("snapshot invalid")
	ErrEventInvalid    = errors.New("event invalid")
)

var validate = validator.New()

// Snapshot is the host's periodic playback report. CapturedAtMs is the
// host's wall clock at capture time and must be non-decreasing within a
// host session; receivers drop older snapshots.
type Snapshot struct {
	Position     float64 `json:"position" validate:"gte=0"`
	Playing      bool    `json:"playing"`
	Rate         float64 `json:"rate" validate:"gt=0"`
	CapturedAtMs int64   `json:"captured_at_ms" validate:"gt=0"`
	ContentRef   string  `json:"content_ref,omitempty"`
}

// Validate rejects out-of-range values so a malformed report can be
// skipped without touching the player. Validator tags cannot express
// NaN/Inf, so finiteness is checked by hand.
func (s Snapshot) Validate() error {
	if math.IsNaN(s.Position) || math.IsInf(s.Position, 0) ||
		math.IsNaN(s.Rate) || math.IsInf(s.Rate, 0) {
		return ErrSnapshotInvalid
	}
	if err := validate.Struct(s); err != nil {
		return ErrSnapshotInvalid
	}
	return nil
}

// EventKind names a discrete host action.
type EventKind string

const (
	EventPlay          EventKind = "play"
	EventPause         EventKind = "pause"
	EventSeek          EventKind = "seek"
	EventSourceChanged EventKind = "source_changed"
)

// Event carries a host action that peers apply immediately, bypassing
// the drift thresholds. No timestamp: discrete events are assumed to
// arrive promptly and represent intent, not steady state.
type Event struct {
	Kind       EventKind `json:"kind" validate:"required,oneof=play pause seek source_changed"`
	Position   float64   `json:"position" validate:"gte=0"`
	ContentRef string    `json:"content_ref,omitempty"`
}

func (e Event) Validate() error {
	if math.IsNaN(e.Position) || math.IsInf(e.Position, 0) {
		return ErrEventInvalid
	}
	if err := validate.Struct(e); err != nil {
		return ErrEventInvalid
	}
	if e.Kind == EventSourceChanged && e.ContentRef == "" {
		return ErrEventInvalid
	}
	return nil
}

// Role of the local participant within a party.
type Role int

const (
	RolePeer Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "peer"
}
