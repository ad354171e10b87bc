package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultRetention is how many messages per topic the in-memory broker keeps
// for subscribers that join late.
const DefaultRetention = 10000

type topicLog struct {
	base int64 // offset of msgs[0]
	msgs []Message
}

// InMemoryBroker is a single-process Broker. Like a Redpanda consumer that
// starts at the earliest offset, every subscriber first receives the
// retained history of its topic, then new messages. Consumer groups are
// ignored: each subscription receives every message.
type InMemoryBroker struct {
	mu        sync.Mutex
	cond      *sync.Cond
	topics    map[string]*topicLog
	retention int
	closed    bool
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return NewInMemoryBrokerWithRetention(DefaultRetention)
}

// NewInMemoryBrokerWithRetention creates a broker keeping at most retention
// messages per topic.
func NewInMemoryBrokerWithRetention(retention int) *InMemoryBroker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	b := &InMemoryBroker{
		topics:    make(map[string]*topicLog),
		retention: retention,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends a message to the topic.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	log := b.topic(topic)
	log.msgs = append(log.msgs, Message{
		Topic:     topic,
		Key:       key,
		Value:     append([]byte(nil), value...),
		Offset:    log.base + int64(len(log.msgs)),
		Timestamp: time.Now().UnixMilli(),
	})
	if drop := len(log.msgs) - b.retention; drop > 0 {
		log.msgs = append([]Message(nil), log.msgs[drop:]...)
		log.base += int64(drop)
	}

	b.cond.Broadcast()
	return nil
}

// Subscribe returns a channel that receives the topic from its earliest
// retained message. The channel is closed when ctx is done or the broker is
// closed.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	msgChan := make(chan Message, 100)
	next := b.topic(topic).base

	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})

	go func() {
		defer stop()
		b.deliver(ctx, topic, next, msgChan)
	}()
	return msgChan, nil
}

// deliver copies messages from offset next into msgChan until ctx is done or
// the broker closes.
func (b *InMemoryBroker) deliver(ctx context.Context, topic string, next int64, msgChan chan<- Message) {
	defer close(msgChan)

	for {
		b.mu.Lock()
		log := b.topic(topic)
		for next >= log.base+int64(len(log.msgs)) && !b.closed && ctx.Err() == nil {
			b.cond.Wait()
		}
		if b.closed || ctx.Err() != nil {
			b.mu.Unlock()
			return
		}
		if next < log.base {
			next = log.base
		}
		batch := append([]Message(nil), log.msgs[next-log.base:]...)
		b.mu.Unlock()

		for _, msg := range batch {
			select {
			case msgChan <- msg:
				next = msg.Offset + 1
			case <-ctx.Done():
				return
			}
		}
	}
}

// topic returns the log of a topic, creating it. Callers hold b.mu.
func (b *InMemoryBroker) topic(name string) *topicLog {
	log, ok := b.topics[name]
	if !ok {
		log = &topicLog{}
		b.topics[name] = log
	}
	return log
}

// Close stops all subscriptions.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
	return nil
}
