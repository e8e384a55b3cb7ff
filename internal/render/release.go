package render

import "Trigon/internal/hal"

// releaseStack records destructors in acquisition order and runs them in
// reverse. Each entry runs at most once.
type releaseStack struct {
	fns []func()
}

func (s *releaseStack) push(fn func()) {
	s.fns = append(s.fns, fn)
}

// track schedules r.Destroy.
func (s *releaseStack) track(r hal.Resource) {
	s.push(r.Destroy)
}

func (s *releaseStack) len() int {
	return len(s.fns)
}

func (s *releaseStack) releaseAll() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		fn := s.fns[i]
		s.fns[i] = nil
		fn()
	}
	s.fns = s.fns[:0]
}
