package chatclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultReconnectDelays waits nothing for the first two attempts, then
// backs off up to ten seconds before giving up.
var DefaultReconnectDelays = []time.Duration{0, 0, time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}

// Schedule is a backoff.BackOff that walks a fixed list of delays and then
// stops.
type Schedule struct {
	delays []time.Duration
	next   int
}

var _ backoff.BackOff = (*Schedule)(nil)

func NewSchedule(delays ...time.Duration) *Schedule {
	return &Schedule{delays: delays}
}

func (s *Schedule) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *Schedule) Reset() {
	s.next = 0
}
