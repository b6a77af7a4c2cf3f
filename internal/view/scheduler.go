package view

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameInterval is roughly 60 Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler coalesces asynchronous invalidations (pan, zoom, tile arrival)
// into at most one repaint per tick. Tile completions can arrive dozens of
// times a second; the redraw rate stays bounded regardless.
type Scheduler struct {
	interval time.Duration
	repaint  func()
	dirty    atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(interval time.Duration, repaint func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Scheduler{
		interval: interval,
		repaint:  repaint,
		done:     make(chan struct{}),
	}
}

// Start begins the tick loop. Each tick triggers one repaint if anything
// marked the scheduler dirty since the previous tick.
func (s *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if s.dirty.CompareAndSwap(true, false) {
					s.repaint()
				}
			}
		}
	}()
}

// MarkDirty requests a repaint on the next tick. Safe from any goroutine.
func (s *Scheduler) MarkDirty() {
	s.dirty.Store(true)
}

// Stop ends the tick loop. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}
