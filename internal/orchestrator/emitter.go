package orchestrator

import (
	"log"
	"sync/atomic"
)

// eventEmitter fans run progress out to a single subscriber. Emission never
// blocks the run: when the buffer is full the event is dropped and counted.
type eventEmitter struct {
	events  chan Event
	dropped atomic.Uint64
}

func newEventEmitter(bufferSize int) *eventEmitter {
	return &eventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// emit sends an event without blocking, dropping it when the buffer is full.
func (e *eventEmitter) emit(event Event) {
	select {
	case e.events <- event:
	default:
		count := e.dropped.Add(1)
		if count%10 == 1 { // log every 10th drop to avoid spam
			log.Printf("[orchestrator] event buffer full, dropped %s (total dropped: %d)", event.Type, count)
		}
	}
}

// droppedCount returns how many events have been dropped so far.
func (e *eventEmitter) droppedCount() uint64 {
	return e.dropped.Load()
}

// close closes the events channel. Emit must not be called afterwards.
func (e *eventEmitter) close() {
	close(e.events)
}
