package gpio

import (
	"fmt"
	"sync"
)

// FakeLines is an in-memory Lines used by tests and by the controller when
// started without hardware.
type FakeLines struct {
	mu     sync.Mutex
	levels map[int]bool
	writes map[int]int

	// SetError and GetError, if set, are returned for every call.
	SetError error
	GetError error
	Closed   bool
}

func NewFakeLines() *FakeLines {
	return &FakeLines{
		levels: make(map[int]bool),
		writes: make(map[int]int),
	}
}

func (f *FakeLines) Set(line int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.levels[line] = active
	f.writes[line]++
	return nil
}

func (f *FakeLines) Get(line int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetError != nil {
		return false, fmt.Errorf("line %d: %w", line, f.GetError)
	}
	return f.levels[line], nil
}

func (f *FakeLines) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for line := range f.levels {
		f.levels[line] = false
	}
	f.Closed = true
	return nil
}

// SetInput drives a simulated input level.
func (f *FakeLines) SetInput(line int, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[line] = active
}

func (f *FakeLines) Level(line int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[line]
}

// Writes returns how many times a line has been written.
func (f *FakeLines) Writes(line int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[line]
}
