// Package notify fans registry change events out to live observers.
//
// A Hub owns the set of joined observers. Each observer has a bounded
// queue; Broadcast never waits on it. An observer whose queue is full, or
// whose Done channel is already closed, is removed from the set instead of
// slowing the broadcast down. The WebSocket endpoint and the MQTT relay are
// both ordinary observers.
//
// Broadcasts are serialised, so an observer that receives two events
// receives them in the order Broadcast was called. Nothing is buffered for
// observers that are not joined: an event published before Join is never
// seen by that observer.
//
// Usage:
//
//	hub := notify.NewHub(256)
//	obs := hub.Join()
//	defer hub.Leave(obs)
//
//	for {
//	    select {
//	    case ev := <-obs.Events():
//	        // deliver ev
//	    case <-obs.Done():
//	        return
//	    }
//	}
package notify
