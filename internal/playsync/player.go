package playsync

import (
	"sync"
	"time"
)

// Player is the capability set the engine needs from a concrete media
// player: read/write position, read/write rate, play/pause, and the
// loaded content. Implementations hold no protocol logic; the engine is
// the only writer and calls from a single goroutine at a time.
type Player interface {
	Position() float64
	SeekTo(pos float64)
	Rate() float64
	SetRate(rate float64)
	Play()
	Pause()
	Playing() bool
	Source() string
	SetSource(ref string)
}

// VirtualPlayer is an in-memory player whose position advances with the
// wall clock while playing. It backs headless hosts (the relay can run a
// party without a real player) and the package tests.
type VirtualPlayer struct {
	mu      sync.Mutex
	basePos float64
	rate    float64
	playing bool
	source  string
	since   time.Time
	now     func() time.Time
}

func NewVirtualPlayer() *VirtualPlayer {
	return &VirtualPlayer{rate: 1.0, now: time.Now}
}

// position must be called with mu held.
func (p *VirtualPlayer) position() float64 {
	if !p.playing {
		return p.basePos
	}
	return p.basePos + p.now().Sub(p.since).Seconds()*p.rate
}

// rebase folds elapsed time into basePos so rate/state changes take
// effect from the current instant. Called with mu held.
func (p *VirtualPlayer) rebase() {
	p.basePos = p.position()
	p.since = p.now()
}

func (p *VirtualPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *VirtualPlayer) SeekTo(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	p.basePos = pos
	p.since = p.now()
}

func (p *VirtualPlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *VirtualPlayer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rate <= 0 {
		return
	}
	p.rebase()
	p.rate = rate
}

func (p *VirtualPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.playing = true
	p.since = p.now()
}

func (p *VirtualPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.rebase()
	p.playing = false
}

func (p *VirtualPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *VirtualPlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// SetSource loads new content and rewinds; play state is preserved so a
// source change mid-playback keeps rolling from zero.
func (p *VirtualPlayer) SetSource(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ref == p.source {
		return
	}
	p.source = ref
	p.basePos = 0
	p.since = p.now()
}
