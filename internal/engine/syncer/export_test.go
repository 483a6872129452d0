package syncer

import "time"

// SetClock replaces the clock used to timestamp deployments.
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}
