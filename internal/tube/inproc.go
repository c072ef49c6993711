package tube

import (
	"context"
	"errors"
	"sync"
)

const inboxSize = 1024

// ErrInboxFull reports a message dropped because a recipient stopped reading.
var ErrInboxFull = errors.New("tube: inbox full")

// Inproc is an in-memory session shared by several endpoints of one process.
// Delivery is ordered per sender, which is all the sync engine relies on.
type Inproc struct {
	mu        sync.RWMutex
	endpoints map[ParticipantID]*Endpoint
	order     []ParticipantID
	initiator ParticipantID
	offers    []Offer
}

func NewInproc() *Inproc {
	return &Inproc{endpoints: make(map[ParticipantID]*Endpoint)}
}

// Create opens the channel; the creator is the session initiator.
func (b *Inproc) Create(nick string) *Endpoint {
	ep := b.add(nick, true)
	b.mu.Lock()
	b.initiator = ep.id
	b.mu.Unlock()
	return ep
}

// Join attaches a new participant to an existing channel.
func (b *Inproc) Join(nick string) *Endpoint {
	return b.add(nick, false)
}

func (b *Inproc) add(nick string, initiator bool) *Endpoint {
	ep := &Endpoint{
		bus:   b,
		self:  Participant{ID: NewParticipantID(), Nick: nick, Initiator: initiator},
		inbox: make(chan Message, inboxSize),
	}
	ep.id = ep.self.ID
	b.mu.Lock()
	b.endpoints[ep.id] = ep
	b.order = append(b.order, ep.id)
	b.mu.Unlock()
	return ep
}

func (b *Inproc) remove(id ParticipantID) {
	b.mu.Lock()
	delete(b.endpoints, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}

func (b *Inproc) deliver(from ParticipantID, to ParticipantID, topic string, payload []byte) error {
	msg := Message{From: from, To: to, Topic: topic, Payload: append([]byte(nil), payload...)}

	b.mu.RLock()
	var targets []*Endpoint
	if to != "" {
		ep, ok := b.endpoints[to]
		if !ok {
			b.mu.RUnlock()
			return ErrUnknownParticipant
		}
		targets = append(targets, ep)
	} else {
		for _, id := range b.order {
			if id != from {
				targets = append(targets, b.endpoints[id])
			}
		}
	}
	b.mu.RUnlock()

	var err error
	for _, ep := range targets {
		if !ep.push(msg) {
			err = ErrInboxFull
		}
	}
	return err
}

// Endpoint is one participant's view of an Inproc channel.
type Endpoint struct {
	bus   *Inproc
	id    ParticipantID
	self  Participant
	inbox chan Message

	mu     sync.Mutex
	closed bool
}

var _ Transport = (*Endpoint)(nil)

// push never blocks; it reports false when the inbox is full.
func (e *Endpoint) push(msg Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return true
	}
	select {
	case e.inbox <- msg:
		return true
	default:
		return false
	}
}

func (e *Endpoint) LocalID() ParticipantID { return e.id }

func (e *Endpoint) Initiator() ParticipantID {
	e.bus.mu.RLock()
	defer e.bus.mu.RUnlock()
	return e.bus.initiator
}

func (e *Endpoint) Roster() []Participant {
	e.bus.mu.RLock()
	defer e.bus.mu.RUnlock()
	out := make([]Participant, 0, len(e.bus.order))
	for _, id := range e.bus.order {
		out = append(out, e.bus.endpoints[id].self)
	}
	return out
}

func (e *Endpoint) Send(ctx context.Context, topic string, payload []byte) error {
	if e.isClosed() {
		return ErrClosed
	}
	return e.bus.deliver(e.id, "", topic, payload)
}

func (e *Endpoint) SendTo(ctx context.Context, to ParticipantID, topic string, payload []byte) error {
	if e.isClosed() {
		return ErrClosed
	}
	return e.bus.deliver(e.id, to, topic, payload)
}

func (e *Endpoint) Messages() <-chan Message { return e.inbox }

func (e *Endpoint) OfferDataChannel(ctx context.Context, offer Offer) error {
	if e.isClosed() {
		return ErrClosed
	}
	offer.From = e.id
	e.bus.mu.Lock()
	e.bus.offers = append(e.bus.offers, offer)
	e.bus.mu.Unlock()
	return nil
}

func (e *Endpoint) ListDataChannels(ctx context.Context) ([]Offer, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	e.bus.mu.RLock()
	defer e.bus.mu.RUnlock()
	return append([]Offer(nil), e.bus.offers...), nil
}

// Close leaves the channel; the endpoint's Messages channel is closed.
func (e *Endpoint) Close() error {
	e.bus.remove(e.id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.inbox)
	}
	return nil
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
