// Per-group subscriber fan-out: frame writing, liveness pings, and
// write-failure isolation.

package broadcaster

import (
	"encoding/json"
	"sync"

	"sporthub/internal/entity"
	"sporthub/pkg/log"
)

// padding is written once per attach (~2 KiB) to defeat intermediary
// response buffering so a new subscriber's first real event flushes
// immediately.
var padding = buildPadding()

func buildPadding() []byte {
	b := make([]byte, 2048)
	for i := range b {
		b[i] = ' '
	}
	return b
}

// Broadcaster owns one group's subscriber set. All methods are safe for
// concurrent use, but in practice are only ever called from the owning
// group's single goroutine.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]*entity.Client
	logger  log.Logger
}

func New(logger log.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*entity.Client),
		logger:  logger,
	}
}

// Add registers a new subscriber and immediately queues the padding + ready
// comments so the client's stream flushes before any snapshot is written.
func (b *Broadcaster) Add(c *entity.Client) {
	b.mu.Lock()
	b.clients[c.ID] = c
	b.mu.Unlock()

	b.deliver(c, commentFrame(string(padding)))
	b.deliver(c, commentFrame("ready"))
}

// Remove deletes a subscriber from the set. Safe to call more than once for
// the same id.
func (b *Broadcaster) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, id)
}

// Count returns the number of currently registered subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// snapshot returns the current client set without holding the lock during
// delivery, so a slow or failing write on one client cannot block Add/Remove
// or delivery to any other client.
func (b *Broadcaster) snapshot() []*entity.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*entity.Client, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, c)
	}
	return out
}

// BroadcastEvent JSON-encodes payload and fans it out as a named event to
// every current subscriber. A subscriber whose write fails or whose Done
// channel is closed is removed atomically; nothing else is affected
// nothing else is affected.
func (b *Broadcaster) BroadcastEvent(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error().Err(err).Msg("broadcaster: failed to marshal event payload")
		return
	}
	b.broadcast(entity.Frame{Kind: entity.FrameNamedEvent, Event: event, Data: data})
}

// BroadcastRaw fans out an already-encoded unnamed data frame, used by the
// live-tracker proxy to forward upstream bytes unchanged.
func (b *Broadcaster) BroadcastRaw(data []byte) {
	b.broadcast(entity.Frame{Kind: entity.FrameUnnamedEvent, Data: data})
}

// SendTo writes a single named event to one already-registered client, used
// for attach-time replay of a retained snapshot. Failures remove the client
// the same way a broadcast failure would.
func (b *Broadcaster) SendTo(c *entity.Client, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error().Err(err).Msg("broadcaster: failed to marshal replay payload")
		return
	}
	b.deliver(c, entity.Frame{Kind: entity.FrameNamedEvent, Event: event, Data: data})
}

// Heartbeat writes a liveness comment to every subscriber and prunes any
// whose Done signal has already fired.
func (b *Broadcaster) Heartbeat() {
	b.broadcast(commentFrame("hb"))
}

func commentFrame(text string) entity.Frame {
	return entity.Frame{Kind: entity.FrameComment, Data: []byte(text)}
}

func (b *Broadcaster) broadcast(f entity.Frame) {
	for _, c := range b.snapshot() {
		b.deliver(c, f)
	}
}

// deliver writes one frame to one client, removing it on any failure path:
// a closed Done channel, or a full send buffer: a blocked subscriber must
// not stall the others, so the send is non-blocking and treats "would
// block" the same as a dead peer.
func (b *Broadcaster) deliver(c *entity.Client, f entity.Frame) {
	select {
	case <-c.Done:
		b.Remove(c.ID)
		return
	default:
	}

	select {
	case c.Send <- f:
	case <-c.Done:
		b.Remove(c.ID)
	default:
		b.logger.Warn().Msg("broadcaster: subscriber send buffer full, dropping client")
		b.Remove(c.ID)
	}
}
