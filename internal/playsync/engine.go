package playsync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink is the outbound side of the transport. Sends are fire-and-forget;
// a failed send is logged and the next snapshot or a resync recovers.
type Sink interface {
	SendSnapshot(Snapshot) error
	SendEvent(Event) error
	SendResync() error
}

// Engine is one participant's sync state machine, scoped to a single
// party session. As host it broadcasts periodic snapshots and forwards
// explicit player actions; as peer it reconciles the local player
// against incoming host state. Role is assigned from outside (the room
// decides who hosts); the engine never elects itself.
//
// All methods are safe for concurrent use; internally a single mutex
// serializes every player mutation.
type Engine struct {
	sink Sink
	tun  Tunables
	sup  *suppressor
	log  zerolog.Logger
	now  func() time.Time

	mu             sync.Mutex
	role           Role
	player         Player
	rec            *Reconciler
	lastCapturedMs int64
	stopBroadcast  context.CancelFunc
	closed         bool
}

func NewEngine(sink Sink, tun Tunables, log zerolog.Logger) *Engine {
	e := &Engine{
		sink: sink,
		tun:  tun,
		log:  log,
		now:  time.Now,
	}
	e.sup = newSuppressor(tun.SuppressWindow, func() time.Time { return e.now() })
	return e
}

// AttachPlayer binds the local player. Until a player is attached every
// handler is a no-op; timers and messages can fire during attach races.
func (e *Engine) AttachPlayer(p Player) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.rec != nil {
		e.rec.Close()
	}
	e.player = p
	e.rec = NewReconciler(p, e.sup, e.tun, e.log)
}

// DetachPlayer releases the player and cancels any pending correction
// timer, so nothing can fire against a player that is gone.
func (e *Engine) DetachPlayer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	e.player = nil
}

// Role reports the current role.
func (e *Engine) Role() Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role
}

// SetRole switches between broadcaster and consumer. Idempotent. On
// transition into host the snapshot ticker starts; on transition out it
// is cancelled under the same lock, so no snapshot is sent after the
// switch.
func (e *Engine) SetRole(r Role) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.role == r {
		return
	}
	e.role = r
	if r == RoleHost {
		ctx, cancel := context.WithCancel(context.Background())
		e.stopBroadcast = cancel
		go e.broadcastLoop(ctx)
		e.log.Info().Str("module", "playsync.engine").Msg("became host")
		return
	}
	if e.stopBroadcast != nil {
		e.stopBroadcast()
		e.stopBroadcast = nil
	}
	// A fresh peer has no snapshot history for the new host yet.
	e.lastCapturedMs = 0
	e.log.Info().Str("module", "playsync.engine").Msg("became peer")
}

func (e *Engine) broadcastLoop(ctx context.Context) {
	t := time.NewTicker(e.tun.BroadcastInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.broadcastOnce()
		}
	}
}

// broadcastOnce sends one snapshot while holding the engine lock: a
// role switch also runs under the lock, so a stale tick that lost the
// race observes the new role and sends nothing.
func (e *Engine) broadcastOnce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.role != RoleHost || e.player == nil {
		return
	}
	snap := e.captureLocked()
	if err := e.sink.SendSnapshot(snap); err != nil {
		e.log.Debug().Str("module", "playsync.engine").Err(err).Msg("snapshot send dropped")
	}
}

func (e *Engine) captureLocked() Snapshot {
	return Snapshot{
		Position:     e.player.Position(),
		Playing:      e.player.Playing(),
		Rate:         e.player.Rate(),
		CapturedAtMs: e.now().UnixMilli(),
		ContentRef:   e.player.Source(),
	}
}

// BroadcastNow sends one snapshot immediately, outside the periodic
// schedule. Hosts call it when a resync request arrives so a late
// joiner does not wait out the rest of the interval. No-op off-host.
func (e *Engine) BroadcastNow() {
	e.broadcastOnce()
}

// HandleSnapshot is the peer-side inbound path: validate, drop stale
// deliveries, estimate where the host is now, reconcile. Duplicate
// delivery is harmless; reconciliation is idempotent.
func (e *Engine) HandleSnapshot(snap Snapshot) {
	if err := snap.Validate(); err != nil {
		e.log.Debug().Str("module", "playsync.engine").Err(err).Msg("snapshot rejected")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.rec == nil || e.role == RoleHost {
		return
	}
	if snap.CapturedAtMs < e.lastCapturedMs {
		return
	}
	e.lastCapturedMs = snap.CapturedAtMs

	if snap.ContentRef != "" && snap.ContentRef != e.player.Source() {
		e.rec.Apply(Event{Kind: EventSourceChanged, ContentRef: snap.ContentRef})
	}
	est := EstimatePosition(snap, e.now().UnixMilli())
	e.rec.Reconcile(est, snap.Playing)
}

// HandleEvent applies a discrete host action immediately, bypassing the
// drift thresholds.
func (e *Engine) HandleEvent(ev Event) {
	if err := ev.Validate(); err != nil {
		e.log.Debug().Str("module", "playsync.engine").Err(err).Msg("event rejected")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.rec == nil || e.role == RoleHost {
		return
	}
	e.rec.Apply(ev)
}

// EmitPlay forwards a host-side play action at the current position.
func (e *Engine) EmitPlay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEmitLocked() {
		return
	}
	e.sendEventLocked(Event{Kind: EventPlay, Position: e.player.Position()})
}

// EmitPause forwards a host-side pause action at the current position.
func (e *Engine) EmitPause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEmitLocked() {
		return
	}
	e.sendEventLocked(Event{Kind: EventPause, Position: e.player.Position()})
}

// EmitSeek forwards a host-side seek to pos.
func (e *Engine) EmitSeek(pos float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEmitLocked() || pos < 0 {
		return
	}
	e.sendEventLocked(Event{Kind: EventSeek, Position: pos})
}

// EmitSourceChanged forwards a host-side content switch.
func (e *Engine) EmitSourceChanged(ref string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEmitLocked() || ref == "" {
		return
	}
	e.sendEventLocked(Event{Kind: EventSourceChanged, Position: e.player.Position(), ContentRef: ref})
}

// canEmitLocked gates every discrete emission: host only, player
// attached, and not inside the suppression window. A suppressed call is
// dropped, not queued; re-broadcasting our own corrections as host
// intent is exactly the feedback loop the window exists to break.
func (e *Engine) canEmitLocked() bool {
	if e.closed || e.role != RoleHost || e.player == nil {
		return false
	}
	return !e.sup.Active()
}

func (e *Engine) sendEventLocked(ev Event) {
	if err := e.sink.SendEvent(ev); err != nil {
		e.log.Debug().Str("module", "playsync.engine").Err(err).Msg("event send dropped")
	}
}

// RequestSync asks the room to have the current host re-emit a fresh
// snapshot. Any role may call it, typically on join or after a
// reconnect. Zero, one, or several snapshots may come back; idempotent
// reconciliation absorbs all three cases.
func (e *Engine) RequestSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if err := e.sink.SendResync(); err != nil {
		e.log.Debug().Str("module", "playsync.engine").Err(err).Msg("resync send dropped")
	}
}

// Close tears the session down: stops the broadcast ticker, cancels the
// correction timer, and detaches the player. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.stopBroadcast != nil {
		e.stopBroadcast()
		e.stopBroadcast = nil
	}
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	e.player = nil
}
