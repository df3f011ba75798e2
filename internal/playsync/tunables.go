package playsync

import "time"

// Tunables are the protocol constants. Every participant in a party must
// run the same values or convergence degrades; the relay hands them out
// in the room-state payload so clients never hardcode them.
type Tunables struct {
	// BroadcastInterval is the host snapshot period.
	BroadcastInterval time.Duration `json:"broadcast_interval" mapstructure:"broadcast_interval"`
	// ConvergeThreshold is the drift (seconds) below which no correction runs.
	ConvergeThreshold float64 `json:"converge_threshold" mapstructure:"converge_threshold"`
	// HardSeekThreshold is the drift (seconds) above which the player is
	// force-seeked instead of rate-nudged.
	HardSeekThreshold float64 `json:"hard_seek_threshold" mapstructure:"hard_seek_threshold"`
	// NudgeRate is the fractional speed change of a gentle correction.
	NudgeRate float64 `json:"nudge_rate" mapstructure:"nudge_rate"`
	// NudgeDuration is how long a nudge runs before the rate resets to 1.0.
	NudgeDuration time.Duration `json:"nudge_duration" mapstructure:"nudge_duration"`
	// SuppressWindow mutes outbound emissions after a programmatic
	// player mutation, so corrections are not re-broadcast as intent.
	SuppressWindow time.Duration `json:"suppress_window" mapstructure:"suppress_window"`
}

// DefaultTunables returns the reference values. The windows are fixed,
// not latency-adaptive; deployments that want adaptivity tune these.
func DefaultTunables() Tunables {
	return Tunables{
		BroadcastInterval: 1500 * time.Millisecond,
		ConvergeThreshold: 0.1,
		HardSeekThreshold: 0.5,
		NudgeRate:         0.05,
		NudgeDuration:     2000 * time.Millisecond,
		SuppressWindow:    500 * time.Millisecond,
	}
}
