package workqueue

import "sync"

// ConcurrencyStrategy decides when tasks of each kind may start. The
// strategy tracks running counts itself; the queue reports starts and
// completions.
type ConcurrencyStrategy interface {
	CanStart(kind Kind) bool
	OnStart(kind Kind)
	OnComplete(kind Kind)
}

// SerializedStrategy runs one conversion task and one analysis task at a
// time. A conversion and an analysis task may overlap.
type SerializedStrategy struct {
	mu      sync.Mutex
	running map[Kind]bool
}

// NewSerializedStrategy creates the default strategy.
func NewSerializedStrategy() *SerializedStrategy {
	return &SerializedStrategy{running: make(map[Kind]bool)}
}

func (s *SerializedStrategy) CanStart(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running[kind]
}

func (s *SerializedStrategy) OnStart(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[kind] = true
}

func (s *SerializedStrategy) OnComplete(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[kind] = false
}

// ThrottledStrategy caps concurrent conversion tasks at a fixed limit
// while serializing analysis tasks. Useful when the LLM provider allows
// some parallelism but not unbounded fan-out.
type ThrottledStrategy struct {
	mu              sync.Mutex
	maxConversions  int
	conversions     int
	analysisRunning bool
}

// NewThrottledStrategy creates a strategy allowing up to maxConversions
// concurrent conversion tasks. A limit below 1 is treated as 1.
func NewThrottledStrategy(maxConversions int) *ThrottledStrategy {
	if maxConversions < 1 {
		maxConversions = 1
	}
	return &ThrottledStrategy{maxConversions: maxConversions}
}

func (s *ThrottledStrategy) CanStart(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == KindConversion {
		return s.conversions < s.maxConversions
	}
	return !s.analysisRunning
}

func (s *ThrottledStrategy) OnStart(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == KindConversion {
		s.conversions++
		return
	}
	s.analysisRunning = true
}

func (s *ThrottledStrategy) OnComplete(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == KindConversion {
		if s.conversions > 0 {
			s.conversions--
		}
		return
	}
	s.analysisRunning = false
}
