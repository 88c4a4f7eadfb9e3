package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/ir"
)

func queuedMessage(b byte) Event {
	return Event{Type: EventTypeExecute, Message: Message{To: ir.Address{19: b}}}
}

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(queuedMessage(1))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, EventTypeExecute, got.Type)
	assert.Equal(t, byte(1), got.Message.To[19])
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for i := byte(1); i <= 3; i++ {
		q.Enqueue(queuedMessage(i))
	}

	for i := byte(1); i <= 3; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, e.Message.To[19])
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	done := make(chan Event)
	go func() {
		<-q.Wait()
		e, ok := q.TryDequeue()
		if ok {
			done <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(queuedMessage(7))

	select {
	case e := <-done:
		assert.Equal(t, byte(7), e.Message.To[19])
	case <-time.After(time.Second):
		t.Fatal("waiter was not signalled")
	}
}

func TestEventQueue_Close_WakesWaiters(t *testing.T) {
	q := newEventQueue()

	done := make(chan bool)
	go func() {
		_, open := <-q.Wait()
		done <- open
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case open := <-done:
		assert.False(t, open, "signal channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake after close")
	}
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close() // idempotent

	ok := q.Enqueue(queuedMessage(1))
	assert.False(t, ok, "enqueue after close should return false")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()

	assert.Equal(t, 0, q.Len())

	q.Enqueue(queuedMessage(1))
	assert.Equal(t, 1, q.Len())

	q.Enqueue(queuedMessage(2))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_Drain(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(queuedMessage(1))
	q.Enqueue(queuedMessage(2))

	events := q.drain()
	assert.Len(t, events, 2)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(queuedMessage(id))
			}
		}(byte(p))
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*eventsPerProducer, received)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "execute", EventTypeExecute.String())
	assert.Equal(t, "query", EventTypeQuery.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
