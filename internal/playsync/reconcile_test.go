package playsync

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePlayer records every mutation so tests can assert on exactly
// which corrections ran. Locked because the nudge reset timer fires on
// its own goroutine.
type fakePlayer struct {
	mu      sync.Mutex
	pos     float64
	rate    float64
	playing bool
	source  string

	seeks    []float64
	rateSets []float64
	plays    int
	pauses   int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{rate: 1.0}
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *fakePlayer) SeekTo(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
	p.seeks = append(p.seeks, pos)
}

func (p *fakePlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *fakePlayer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
	p.rateSets = append(p.rateSets, rate)
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.plays++
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.pauses++
}

func (p *fakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *fakePlayer) SetSource(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = ref
}

func newTestReconciler(t *testing.T, p Player, tun Tunables) (*Reconciler, *suppressor) {
	t.Helper()
	clk := newFakeClock()
	sup := newSuppressor(tun.SuppressWindow, clk.Now)
	r := NewReconciler(p, sup, tun, zerolog.Nop())
	t.Cleanup(r.Close)
	return r, sup
}

func TestReconcileConvergedIsNoop(t *testing.T) {
	p := newFakePlayer()
	p.pos = 10.0
	r, _ := newTestReconciler(t, p, DefaultTunables())

	if got := r.Reconcile(10.05, true); got != ActionNone {
		t.Fatalf("Reconcile() = %v, want none", got)
	}
	if len(p.seeks) != 0 || len(p.rateSets) != 0 {
		t.Fatalf("converged drift must not touch the player: seeks=%v rates=%v", p.seeks, p.rateSets)
	}
}

func TestReconcileThresholdBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		drift float64
		want  Action
	}{
		{"exactly converge threshold", 0.10, ActionNone},
		{"just above converge threshold", 0.11, ActionNudge},
		{"exactly hard-seek threshold", 0.50, ActionNudge},
		{"just above hard-seek threshold", 0.51, ActionSeek},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newFakePlayer()
			p.pos = 100.0
			r, _ := newTestReconciler(t, p, DefaultTunables())

			if got := r.Reconcile(100.0+tc.drift, true); got != tc.want {
				t.Fatalf("Reconcile(drift=%v) = %v, want %v", tc.drift, got, tc.want)
			}
		})
	}
}

func TestReconcileNudgeDirection(t *testing.T) {
	p := newFakePlayer()
	p.pos = 10.0
	r, _ := newTestReconciler(t, p, DefaultTunables())

	// Local behind the host: speed up.
	r.Reconcile(10.3, true)
	if p.rate != 1.05 {
		t.Fatalf("behind host: rate = %v, want 1.05", p.rate)
	}

	// Local ahead of the host: slow down.
	p2 := newFakePlayer()
	p2.pos = 10.3
	r2, _ := newTestReconciler(t, p2, DefaultTunables())
	r2.Reconcile(10.0, true)
	if p2.rate != 0.95 {
		t.Fatalf("ahead of host: rate = %v, want 0.95", p2.rate)
	}
}

func TestReconcileNudgeAutoResets(t *testing.T) {
	p := newFakePlayer()
	p.pos = 10.0
	tun := DefaultTunables()
	tun.NudgeDuration = 20 * time.Millisecond
	r, _ := newTestReconciler(t, p, tun)

	r.Reconcile(10.3, true)
	if p.rate != 1.05 {
		t.Fatalf("rate = %v, want 1.05", p.rate)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Rate() != 1.0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Rate() != 1.0 {
		t.Fatal("nudge never auto-reset")
	}
}

func TestReconcileNudgeReplacesNotStacks(t *testing.T) {
	p := newFakePlayer()
	p.pos = 10.0
	r, _ := newTestReconciler(t, p, DefaultTunables())

	r.Reconcile(10.3, true)
	r.Reconcile(10.3, true)

	for _, rate := range p.rateSets {
		if rate != 1.05 {
			t.Fatalf("stacked rate %v applied", rate)
		}
	}
	// Convergence cancels the pending reset and restores 1.0 once.
	p.pos = 10.3
	r.Reconcile(10.3, true)
	if p.rate != 1.0 {
		t.Fatalf("rate = %v after convergence, want 1.0", p.rate)
	}
}

func TestReconcileHardSeekAlignsState(t *testing.T) {
	p := newFakePlayer()
	p.pos = 0.0
	r, sup := newTestReconciler(t, p, DefaultTunables())

	if got := r.Reconcile(120.6, true); got != ActionSeek {
		t.Fatalf("Reconcile() = %v, want seek", got)
	}
	if len(p.seeks) != 1 || p.seeks[0] != 120.6 {
		t.Fatalf("seeks = %v, want one seek to 120.6", p.seeks)
	}
	if !p.playing || p.plays != 1 {
		t.Fatal("hard seek must align play state to the host")
	}
	if p.rate != 1.0 {
		t.Fatalf("rate = %v, want reset to 1.0", p.rate)
	}
	if !sup.Active() {
		t.Fatal("hard seek must enter the suppression window")
	}
}

func TestReconcileHardSeekSkipsRedundantPlay(t *testing.T) {
	p := newFakePlayer()
	p.pos = 0.0
	p.playing = true
	r, _ := newTestReconciler(t, p, DefaultTunables())

	r.Reconcile(50.0, true)
	if p.plays != 0 {
		t.Fatalf("play issued %d times while already playing", p.plays)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	p := newFakePlayer()
	p.pos = 0.0
	r, _ := newTestReconciler(t, p, DefaultTunables())

	r.Reconcile(30.0, true)
	// Same estimate again after the seek took effect: converged, no
	// second seek.
	r.Reconcile(30.0, true)

	if len(p.seeks) != 1 {
		t.Fatalf("seeks = %v, want exactly one", p.seeks)
	}
}

func TestApplyPauseForcesSeekAndPause(t *testing.T) {
	p := newFakePlayer()
	p.pos = 12.0
	p.playing = true
	r, sup := newTestReconciler(t, p, DefaultTunables())

	r.Apply(Event{Kind: EventPause, Position: 55.0})

	if len(p.seeks) != 1 || p.seeks[0] != 55.0 {
		t.Fatalf("seeks = %v, want one seek to 55.0", p.seeks)
	}
	if p.playing {
		t.Fatal("player must be paused")
	}
	if !sup.Active() {
		t.Fatal("discrete apply must enter the suppression window")
	}
}

func TestApplySeekKeepsPlayState(t *testing.T) {
	p := newFakePlayer()
	p.playing = true
	r, _ := newTestReconciler(t, p, DefaultTunables())

	r.Apply(Event{Kind: EventSeek, Position: 90.0})

	if !p.playing {
		t.Fatal("seek must not change play state")
	}
	if p.pos != 90.0 {
		t.Fatalf("pos = %v, want 90.0", p.pos)
	}
}

func TestApplySourceChanged(t *testing.T) {
	p := newFakePlayer()
	r, _ := newTestReconciler(t, p, DefaultTunables())

	r.Apply(Event{Kind: EventSourceChanged, ContentRef: "movie-2"})
	if p.source != "movie-2" {
		t.Fatalf("source = %q, want movie-2", p.source)
	}
}
