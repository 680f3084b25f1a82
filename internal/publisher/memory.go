package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is a payload captured by the in-memory publisher.
type Message struct {
	Topic string
	Data  []byte
}

// MemoryPublisher collects published messages in memory. Used in tests and
// when no broker is configured.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	seq      int
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the JSON-encoded payload and returns a synthetic ID.
func (p *MemoryPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.messages = append(p.messages, Message{Topic: topic, Data: data})
	return fmt.Sprintf("mem-%d", p.seq), nil
}

// Messages returns a copy of everything published so far.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
