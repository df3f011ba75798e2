package playsync

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Action reports which tier of correction a reconciliation applied.
type Action int

const (
	ActionNone Action = iota
	ActionNudge
	ActionSeek
)

func (a Action) String() string {
	switch a {
	case ActionNudge:
		return "nudge"
	case ActionSeek:
		return "seek"
	default:
		return "none"
	}
}

// Reconciler closes the drift loop on a peer: given where the host is
// estimated to be and where the local player actually is, it applies
// nothing, a rate nudge, or a hard seek. Constant hard seeking is
// visually disruptive; small drift is absorbed imperceptibly via speed
// and only large drift (after a host seek or a long stall) jumps.
type Reconciler struct {
	player Player
	sup    *suppressor
	tun    Tunables
	log    zerolog.Logger

	mu         sync.Mutex
	nudging    bool
	nudgeReset *time.Timer
}

func NewReconciler(player Player, sup *suppressor, tun Tunables, log zerolog.Logger) *Reconciler {
	return &Reconciler{player: player, sup: sup, tun: tun, log: log}
}

// Reconcile applies the three-tier policy. Exact-threshold drift takes
// the milder tier. Idempotent: re-applying the same estimate yields the
// same single corrective action, never a stacked one.
func (r *Reconciler) Reconcile(estimated float64, hostPlaying bool) Action {
	if r.player == nil {
		return ActionNone
	}
	drift := math.Abs(r.player.Position() - estimated)

	switch {
	case drift <= r.tun.ConvergeThreshold:
		r.cancelNudge(true)
		return ActionNone

	case drift <= r.tun.HardSeekThreshold:
		rate := 1.0 + r.tun.NudgeRate
		if r.player.Position() > estimated {
			rate = 1.0 - r.tun.NudgeRate
		}
		r.startNudge(rate)
		r.log.Debug().Str("module", "playsync.reconcile").Float64("drift", drift).Float64("rate", rate).Msg("rate nudge")
		return ActionNudge

	default:
		r.sup.Latch()
		r.cancelNudge(false)
		r.player.SeekTo(estimated)
		r.player.SetRate(1.0)
		r.alignPlayState(hostPlaying)
		r.log.Debug().Str("module", "playsync.reconcile").Float64("drift", drift).Float64("to", estimated).Msg("hard seek")
		return ActionSeek
	}
}

// Apply executes a discrete host action immediately, bypassing the
// drift thresholds. Discrete events are host intent, not steady-state
// drift, so they always win.
func (r *Reconciler) Apply(ev Event) {
	if r.player == nil {
		return
	}
	r.sup.Latch()
	r.cancelNudge(false)
	r.player.SetRate(1.0)

	switch ev.Kind {
	case EventPlay:
		r.player.SeekTo(ev.Position)
		r.alignPlayState(true)
	case EventPause:
		r.player.SeekTo(ev.Position)
		r.alignPlayState(false)
	case EventSeek:
		r.player.SeekTo(ev.Position)
	case EventSourceChanged:
		r.player.SetSource(ev.ContentRef)
	}
	r.log.Debug().Str("module", "playsync.reconcile").Str("kind", string(ev.Kind)).Float64("pos", ev.Position).Msg("applied event")
}

// alignPlayState issues play/pause only on an actual mismatch.
func (r *Reconciler) alignPlayState(hostPlaying bool) {
	if r.player.Playing() == hostPlaying {
		return
	}
	if hostPlaying {
		r.player.Play()
	} else {
		r.player.Pause()
	}
}

// startNudge sets the corrective rate and (re)arms the reset timer.
// Exactly one pending reset exists at a time: a new nudge replaces the
// old timer rather than stacking on it.
func (r *Reconciler) startNudge(rate float64) {
	r.sup.Latch()
	r.player.SetRate(rate)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nudgeReset != nil {
		r.nudgeReset.Stop()
	}
	r.nudging = true
	r.nudgeReset = time.AfterFunc(r.tun.NudgeDuration, func() {
		// The timer fires on its own goroutine; grab the player
		// under the lock so a concurrent Close cannot race it.
		r.mu.Lock()
		expired := r.nudging
		p := r.player
		r.nudging = false
		r.nudgeReset = nil
		r.mu.Unlock()
		if expired && p != nil {
			r.sup.Latch()
			p.SetRate(1.0)
		}
	})
}

// cancelNudge stops the pending reset; when restore is set the rate is
// put back to 1.0 (the converged case).
func (r *Reconciler) cancelNudge(restore bool) {
	r.mu.Lock()
	wasNudging := r.nudging
	if r.nudgeReset != nil {
		r.nudgeReset.Stop()
		r.nudgeReset = nil
	}
	r.nudging = false
	r.mu.Unlock()

	if restore && wasNudging && r.player != nil {
		r.sup.Latch()
		r.player.SetRate(1.0)
	}
}

// Close cancels the pending reset timer so it can never fire against a
// detached player.
func (r *Reconciler) Close() {
	r.cancelNudge(false)
	r.mu.Lock()
	r.player = nil
	r.mu.Unlock()
}
