package messagequeue

import "sync"

// MessageQueue is the interface for publishing and consuming queue messages.
type MessageQueue interface {
	Publish(queueName string, body []byte) error
	Consume(queueName string, handler func(body []byte)) error
	Close() error
}

// MemoryQueue is an in-process MessageQueue. Messages published before a
// consumer registers are buffered and delivered on registration.
type MemoryQueue struct {
	mu       sync.Mutex
	buffered map[string][][]byte
	handlers map[string]func(body []byte)
	closed   bool
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		buffered: make(map[string][][]byte),
		handlers: make(map[string]func(body []byte)),
	}
}

// Publish delivers body to the queue's handler, or buffers it when no
// handler is registered yet.
func (q *MemoryQueue) Publish(queueName string, body []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	handler, ok := q.handlers[queueName]
	if !ok {
		q.buffered[queueName] = append(q.buffered[queueName], body)
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()
	handler(body)
	return nil
}

// Consume registers the handler for queueName and drains any buffered
// messages. Handlers run on the publisher's goroutine.
func (q *MemoryQueue) Consume(queueName string, handler func(body []byte)) error {
	q.mu.Lock()
	q.handlers[queueName] = handler
	pending := q.buffered[queueName]
	delete(q.buffered, queueName)
	q.mu.Unlock()
	for _, body := range pending {
		handler(body)
	}
	return nil
}

// Close stops delivery; later publishes are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
