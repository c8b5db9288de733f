package telemetry

import "sync"

// FakeSink records published messages for test assertions.
type FakeSink struct {
	mu       sync.Mutex
	Messages map[string][][]byte
	Err      error
	Closed   bool
}

func NewFakeSink() *FakeSink {
	return &FakeSink{Messages: make(map[string][][]byte)}
}

func (f *FakeSink) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Messages[topic] = append(f.Messages[topic], payload)
	return nil
}

func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *FakeSink) Count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Messages[topic])
}

func (f *FakeSink) Last(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.Messages[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (f *FakeSink) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
