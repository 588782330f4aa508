/*
Package events provides an in-memory event broker for the orchestrator's
audit trail.

The events package implements a lightweight pub/sub bus for broadcasting
worker and job lifecycle events (registration, dispatch, timeout, eviction)
to interested subscribers, such as a stdout audit logger or a future
monitoring extension. Publish never blocks the dispatch path: a full
subscriber buffer drops events rather than applying backpressure.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			log.Info(string(ev.Type) + ": " + ev.Message)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventWorkerRegistered, Message: workerID})
*/
package events
