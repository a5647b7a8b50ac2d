package channel

import (
	"sync"

	"github.com/streamkit/streamkit/internal/packet"
)

// Distributor fans a single Broadcast output out to any number of
// subscriber Channels, each with its own buffer and mode. A slow BestEffort
// subscriber drops its own oldest packets and never delays anyone else. A
// slow Reliable subscriber blocks Publish until it accepts the packet;
// subscribers are served one after another, so those visited after it in
// that Publish call receive the packet only once it does.
type Distributor struct {
	mu          sync.RWMutex
	subscribers map[string]*Channel // keyed by subscriber id (e.g. "label.pin")
}

// NewDistributor creates an empty Distributor for one output pin.
func NewDistributor() *Distributor {
	return &Distributor{subscribers: make(map[string]*Channel)}
}

// Subscribe attaches a new Channel under id, replacing any existing
// subscriber at that id.
func (d *Distributor) Subscribe(id string, ch *Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[id] = ch
}

// Unsubscribe detaches and closes the subscriber at id, if present.
func (d *Distributor) Unsubscribe(id string) {
	d.mu.Lock()
	ch, ok := d.subscribers[id]
	delete(d.subscribers, id)
	d.mu.Unlock()
	if ok {
		ch.Close()
	}
}

// Len reports the current subscriber count.
func (d *Distributor) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Publish fans p out to every current subscriber. A Reliable subscriber
// blocks Publish until it can accept p (or errors); a BestEffort
// subscriber never blocks. Publish returns the first error from a Reliable
// subscriber's Send, after attempting delivery to every subscriber.
func (d *Distributor) Publish(p packet.Packet) error {
	d.mu.RLock()
	targets := make([]*Channel, 0, len(d.subscribers))
	for _, ch := range d.subscribers {
		targets = append(targets, ch)
	}
	d.mu.RUnlock()

	var firstErr error
	for _, ch := range targets {
		if err := ch.Send(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CloseAll closes every subscriber, e.g. when the producing node stops.
func (d *Distributor) CloseAll() {
	d.mu.Lock()
	subs := d.subscribers
	d.subscribers = make(map[string]*Channel)
	d.mu.Unlock()
	for _, ch := range subs {
		ch.Close()
	}
}

// AbortAll aborts every subscriber, e.g. when the producing node panics.
func (d *Distributor) AbortAll() {
	d.mu.Lock()
	subs := d.subscribers
	d.subscribers = make(map[string]*Channel)
	d.mu.Unlock()
	for _, ch := range subs {
		ch.Abort()
	}
}
