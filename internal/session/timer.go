package session

import (
	"context"
	"time"
)

const tickInterval = time.Second

func (m *Machine) startTimerLocked() {
	m.stopTimerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	m.stopTimer = cancel
	gen := m.timerGen

	t := m.newTicker(tickInterval)
	go func() {
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C():
				m.tick(gen)
			}
		}
	}()
}

// stopTimerLocked cancels the running timer. Bumping the generation turns any
// tick already in flight from the old timer into a no-op.
func (m *Machine) stopTimerLocked() {
	m.timerGen++
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }

func (t timeTicker) Stop() { t.t.Stop() }
