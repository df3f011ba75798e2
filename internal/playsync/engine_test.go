package playsync

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSink struct {
	mu      sync.Mutex
	snaps   []Snapshot
	events  []Event
	resyncs int
}

func (s *fakeSink) SendSnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *fakeSink) SendEvent(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) SendResync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncs++
	return nil
}

func (s *fakeSink) snapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

func (s *fakeSink) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestEngine(t *testing.T, tun Tunables) (*Engine, *fakeSink, *fakePlayer, *fakeClock) {
	t.Helper()
	sink := &fakeSink{}
	clk := newFakeClock()
	e := NewEngine(sink, tun, zerolog.Nop())
	e.now = clk.Now
	p := newFakePlayer()
	e.AttachPlayer(p)
	t.Cleanup(e.Close)
	return e, sink, p, clk
}

func TestPeerEmittersSendNothing(t *testing.T) {
	e, sink, _, _ := newTestEngine(t, DefaultTunables())

	e.EmitPlay()
	e.EmitPause()
	e.EmitSeek(33.0)
	e.EmitSourceChanged("movie-1")

	if sink.eventCount() != 0 {
		t.Fatalf("peer emitted %d events, want 0", sink.eventCount())
	}
}

func TestHostEmitSeek(t *testing.T) {
	e, sink, _, _ := newTestEngine(t, DefaultTunables())
	e.SetRole(RoleHost)

	e.EmitSeek(33.0)

	if sink.eventCount() != 1 {
		t.Fatalf("events = %d, want 1", sink.eventCount())
	}
	if sink.events[0].Kind != EventSeek || sink.events[0].Position != 33.0 {
		t.Fatalf("event = %+v", sink.events[0])
	}
}

func TestSuppressionBlocksEmitInsideWindow(t *testing.T) {
	e, sink, _, clk := newTestEngine(t, DefaultTunables())

	// A discrete apply as peer latches the suppressor (programmatic
	// mutation), then the seat moves here.
	e.HandleEvent(Event{Kind: EventSeek, Position: 10.0})
	e.SetRole(RoleHost)

	e.EmitSeek(10.0)
	if sink.eventCount() != 0 {
		t.Fatal("emit inside the suppression window must be dropped")
	}

	clk.Advance(501 * time.Millisecond)
	e.EmitSeek(10.0)
	if sink.eventCount() != 1 {
		t.Fatal("emit after the window must go through")
	}
}

func TestSetRoleIdempotent(t *testing.T) {
	tun := DefaultTunables()
	tun.BroadcastInterval = 20 * time.Millisecond
	e, sink, _, _ := newTestEngine(t, tun)

	e.SetRole(RoleHost)
	e.SetRole(RoleHost)

	time.Sleep(120 * time.Millisecond)
	e.SetRole(RolePeer)

	// A second ticker would roughly double the rate; with one ticker at
	// 20ms about 6 snapshots fit into 120ms.
	if n := sink.snapCount(); n > 10 {
		t.Fatalf("%d snapshots in 120ms suggests duplicate tickers", n)
	}
}

func TestNoSnapshotAfterRoleSwitch(t *testing.T) {
	tun := DefaultTunables()
	tun.BroadcastInterval = 20 * time.Millisecond
	e, sink, _, _ := newTestEngine(t, tun)

	e.SetRole(RoleHost)
	deadline := time.Now().Add(2 * time.Second)
	for sink.snapCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.snapCount() == 0 {
		t.Fatal("host never broadcast")
	}

	e.SetRole(RolePeer)
	n := sink.snapCount()
	time.Sleep(100 * time.Millisecond)
	if sink.snapCount() != n {
		t.Fatalf("snapshot sent after role switch: %d -> %d", n, sink.snapCount())
	}
}

func TestBroadcastNow(t *testing.T) {
	e, sink, _, _ := newTestEngine(t, DefaultTunables())

	e.BroadcastNow()
	if sink.snapCount() != 0 {
		t.Fatal("peer must not answer a resync")
	}

	e.SetRole(RoleHost)
	e.BroadcastNow()
	if sink.snapCount() != 1 {
		t.Fatalf("snapshots = %d, want 1", sink.snapCount())
	}
}

func TestHandleSnapshotDropsStale(t *testing.T) {
	e, _, p, clk := newTestEngine(t, DefaultTunables())
	nowMs := clk.Now().UnixMilli()

	e.HandleSnapshot(Snapshot{Position: 100.0, Playing: false, Rate: 1.0, CapturedAtMs: nowMs})
	if len(p.seeks) != 1 {
		t.Fatalf("seeks = %v, want one", p.seeks)
	}

	// Older capture delivered late: must be ignored.
	e.HandleSnapshot(Snapshot{Position: 5.0, Playing: false, Rate: 1.0, CapturedAtMs: nowMs - 3000})
	if len(p.seeks) != 1 {
		t.Fatalf("stale snapshot applied: seeks = %v", p.seeks)
	}
}

func TestHandleSnapshotDuplicateIsIdempotent(t *testing.T) {
	e, _, p, clk := newTestEngine(t, DefaultTunables())
	snap := Snapshot{Position: 100.0, Playing: false, Rate: 1.0, CapturedAtMs: clk.Now().UnixMilli()}

	e.HandleSnapshot(snap)
	e.HandleSnapshot(snap)

	if len(p.seeks) != 1 {
		t.Fatalf("duplicate delivery caused %d seeks, want 1", len(p.seeks))
	}
}

func TestHostIgnoresInboundState(t *testing.T) {
	e, _, p, clk := newTestEngine(t, DefaultTunables())
	e.SetRole(RoleHost)

	e.HandleSnapshot(Snapshot{Position: 100.0, Playing: true, Rate: 1.0, CapturedAtMs: clk.Now().UnixMilli()})
	e.HandleEvent(Event{Kind: EventSeek, Position: 50.0})

	if len(p.seeks) != 0 {
		t.Fatalf("host applied inbound state: seeks = %v", p.seeks)
	}
}

func TestHandleSnapshotRejectsMalformed(t *testing.T) {
	e, _, p, clk := newTestEngine(t, DefaultTunables())

	e.HandleSnapshot(Snapshot{Position: -3.0, Playing: true, Rate: 1.0, CapturedAtMs: clk.Now().UnixMilli()})

	if len(p.seeks) != 0 || len(p.rateSets) != 0 {
		t.Fatal("malformed snapshot must be skipped")
	}
}

func TestHandleSnapshotWithoutPlayerIsNoop(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, DefaultTunables(), zerolog.Nop())
	t.Cleanup(e.Close)

	// No player attached; must not panic.
	e.HandleSnapshot(Snapshot{Position: 10.0, Playing: true, Rate: 1.0, CapturedAtMs: 1})
	e.HandleEvent(Event{Kind: EventSeek, Position: 5.0})
	e.EmitPlay()
}

func TestLateJoinerCatchUp(t *testing.T) {
	e, sink, p, clk := newTestEngine(t, DefaultTunables())

	e.RequestSync()
	if sink.resyncs != 1 {
		t.Fatalf("resyncs = %d, want 1", sink.resyncs)
	}

	// Host snapshot captured 300ms ago, playing at 120.3.
	snap := Snapshot{
		Position:     120.3,
		Playing:      true,
		Rate:         1.0,
		CapturedAtMs: clk.Now().UnixMilli() - 300,
	}
	e.HandleSnapshot(snap)

	if len(p.seeks) != 1 {
		t.Fatalf("seeks = %v, want one hard seek", p.seeks)
	}
	got := p.seeks[0]
	if got < 120.55 || got > 120.65 {
		t.Fatalf("seeked to %v, want ~120.6", got)
	}
	if !p.Playing() {
		t.Fatal("late joiner must start playing")
	}
}

func TestSnapshotSourceChangeApplies(t *testing.T) {
	e, _, p, clk := newTestEngine(t, DefaultTunables())

	e.HandleSnapshot(Snapshot{Position: 10.0, Playing: false, Rate: 1.0, CapturedAtMs: clk.Now().UnixMilli(), ContentRef: "movie-2"})

	if p.Source() != "movie-2" {
		t.Fatalf("source = %q, want movie-2", p.Source())
	}
}

func TestCloseStopsEverything(t *testing.T) {
	tun := DefaultTunables()
	tun.BroadcastInterval = 20 * time.Millisecond
	e, sink, p, clk := newTestEngine(t, tun)
	e.SetRole(RoleHost)
	e.Close()

	n := sink.snapCount()
	time.Sleep(80 * time.Millisecond)
	if sink.snapCount() != n {
		t.Fatal("broadcast survived Close")
	}

	e.SetRole(RolePeer)
	e.HandleSnapshot(Snapshot{Position: 10.0, Playing: true, Rate: 1.0, CapturedAtMs: clk.Now().UnixMilli()})
	if len(p.seeks) != 0 {
		t.Fatal("handler ran after Close")
	}
}

func TestBroadcastCarriesPlayerState(t *testing.T) {
	tun := DefaultTunables()
	tun.BroadcastInterval = 20 * time.Millisecond
	e, sink, p, _ := newTestEngine(t, tun)
	p.SeekTo(77.0)
	p.Play()
	p.SetSource("movie-9")
	p.seeks = nil

	e.SetRole(RoleHost)
	deadline := time.Now().Add(2 * time.Second)
	for sink.snapCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.SetRole(RolePeer)

	if sink.snapCount() == 0 {
		t.Fatal("no snapshot broadcast")
	}
	sink.mu.Lock()
	snap := sink.snaps[0]
	sink.mu.Unlock()
	if snap.Position != 77.0 || !snap.Playing || snap.ContentRef != "movie-9" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.CapturedAtMs == 0 {
		t.Fatal("snapshot missing capture timestamp")
	}
}
