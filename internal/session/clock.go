package session

import (
	"sync"
	"time"
)

// Clock abstracts the interval primitive driving the quiz countdown so tests
// can replace it with a deterministic fake.
type Clock interface {
	// Start fires tick roughly once per interval until the returned stop
	// function is called. stop is safe to call more than once.
	Start(interval time.Duration, tick func()) (stop func())
}

type tickerClock struct{}

// NewTickerClock returns the wall-clock implementation backed by time.Ticker.
func NewTickerClock() Clock {
	return tickerClock{}
}

func (tickerClock) Start(interval time.Duration, tick func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				tick()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
		})
	}
}
