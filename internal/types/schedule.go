package types

import (
	"fmt"
	"time"
)

// Schedule is an immutable, ordered sequence of phase durations consumed
// through a cursor. Phases alternate between impairment enabled and disabled,
// starting with enabled. Constructed once from CLI input and never mutated,
// so the full sequence stays inspectable after a run.
type Schedule struct {
	durations []time.Duration
	cursor    int
}

// NewSchedule builds a schedule from whole seconds. The sequence must be
// non-empty and every entry non-negative.
func NewSchedule(seconds []int) (*Schedule, error) {
	if len(seconds) == 0 {
		return nil, fmt.Errorf("%w: at least one duration is required", ErrInvalidSchedule)
	}

	durations := make([]time.Duration, 0, len(seconds))
	for i, s := range seconds {
		if s < 0 {
			return nil, fmt.Errorf("%w: duration %d at position %d is negative", ErrInvalidSchedule, s, i)
		}
		durations = append(durations, time.Duration(s)*time.Second)
	}

	return &Schedule{durations: durations}, nil
}

// Next returns the next phase duration and advances the cursor.
// The second return value is false once the schedule is exhausted.
func (s *Schedule) Next() (time.Duration, bool) {
	if s.cursor >= len(s.durations) {
		return 0, false
	}

	d := s.durations[s.cursor]
	s.cursor++
	return d, true
}

// Remaining returns the number of phases not yet consumed.
func (s *Schedule) Remaining() int {
	return len(s.durations) - s.cursor
}

// Len returns the total number of phases in the schedule.
func (s *Schedule) Len() int {
	return len(s.durations)
}

// Durations returns a copy of the full phase sequence, regardless of cursor
// position.
func (s *Schedule) Durations() []time.Duration {
	out := make([]time.Duration, len(s.durations))
	copy(out, s.durations)
	return out
}
