package hub

import "sync"

// Registry maps channel names to the set of subscribed connection ids. A
// channel entry exists if and only if it has at least one subscriber: entries
// are created lazily on first subscribe and removed on last unsubscribe.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]map[string]struct{})}
}

// Subscribe adds a connection to a channel, creating the channel entry if it
// does not exist yet.
func (r *Registry) Subscribe(connID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[string]struct{})
		r.channels[channel] = subs
	}
	subs[connID] = struct{}{}
}

// Unsubscribe removes a connection from a channel and deletes the channel
// entry when it becomes empty. Unknown channels or connections are no-ops.
func (r *Registry) Unsubscribe(connID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
}

// Subscribers returns a copy of the current subscriber set for a channel.
// Missing channels yield an empty slice.
func (r *Registry) Subscribers(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.channels[channel]
	out := make([]string, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	return out
}

// Has reports whether a connection is registered on a channel.
func (r *Registry) Has(channel, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[channel][connID]
	return ok
}

// NumChannels returns the number of channels with at least one subscriber.
func (r *Registry) NumChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
