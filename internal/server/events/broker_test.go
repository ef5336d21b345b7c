package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubscriber struct {
	mu      sync.Mutex
	events  []Event
	closed  bool
	sendErr error
}

func (m *mockSubscriber) Send(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.sendErr
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSubscriber) received() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *mockSubscriber) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func startBroker(t *testing.T) (*Broker, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	logger := zerolog.Nop()
	b := NewBroker(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b, cancel, done
}

func TestBrokerSubscribeBeforeRun(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)

	sub := &mockSubscriber{}
	done := make(chan struct{})
	go func() {
		b.Subscribe(sub)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscribe blocked before Run started")
	}
}

func TestBrokerFanOut(t *testing.T) {
	b, _, _ := startBroker(t)

	first, second := &mockSubscriber{}, &mockSubscriber{sendErr: errors.New("transport gone")}
	b.Subscribe(first)
	b.Subscribe(second)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	b.Publish(LinkCreated, map[string]string{"layer": "google"})
	b.Publish(PlaceCreated, map[string]string{"name": "Met"})

	for _, sub := range []*mockSubscriber{first, second} {
		require.Eventually(t, func() bool { return len(sub.received()) == 2 }, time.Second, 5*time.Millisecond)
	}

	types := map[EventType]bool{}
	for _, e := range first.received() {
		types[e.Type] = true
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, map[EventType]bool{LinkCreated: true, PlaceCreated: true}, types)
}

func TestBrokerUnsubscribe(t *testing.T) {
	b, _, _ := startBroker(t)

	sub := &mockSubscriber{}
	b.Subscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	b.Unsubscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, sub.isClosed())

	b.Publish(LinkTouched, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sub.received())
}

func TestBrokerShutdownClosesSubscribers(t *testing.T) {
	b, cancel, done := startBroker(t)

	sub := &mockSubscriber{}
	b.Subscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.True(t, sub.isClosed())
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)

	done := make(chan struct{})
	go func() {
		for range eventBuffer * 2 {
			b.Publish(LinkUpdated, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, b.events, eventBuffer)
}
