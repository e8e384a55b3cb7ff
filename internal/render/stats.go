package render

import "time"

// frameStats measures frames per second over windows of at least one second.
type frameStats struct {
	now    func() time.Time
	count  int
	last   time.Time
	fps    float64
	frames uint64
}

func newFrameStats(now func() time.Time) frameStats {
	if now == nil {
		now = time.Now
	}
	return frameStats{now: now, last: now()}
}

// tick counts one presented frame and reports a new rate when a window
// closes.
func (s *frameStats) tick() (float64, bool) {
	s.frames++
	s.count++
	now := s.now()
	elapsed := now.Sub(s.last)
	if elapsed < time.Second {
		return s.fps, false
	}
	s.fps = float64(s.count) / elapsed.Seconds()
	s.count = 0
	s.last = now
	return s.fps, true
}
