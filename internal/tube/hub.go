package tube

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ClassPresenter/internal/logger"
)

const (
	SessionPath  = "/session"
	ChannelsPath = "/channels"

	writeWait = 10 * time.Second
)

// Hub is the instructor's end of the channel: it accepts student websockets,
// relays one-to-many messages and routes unicast ones. The hub itself is a
// participant (the initiator).
type Hub struct {
	log      *logger.Logger
	self     Participant
	inbox    chan Message
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	peers  map[ParticipantID]*peer
	order  []ParticipantID
	offers []Offer
	closed bool
	wg     sync.WaitGroup
}

type peer struct {
	info Participant
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peer) write(f frame) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(f)
}

var _ Transport = (*Hub)(nil)

func NewHub(log *logger.Logger, nick string) *Hub {
	return &Hub{
		log:   log.With("component", "tube.hub"),
		self:  Participant{ID: NewParticipantID(), Nick: nick, Initiator: true},
		inbox: make(chan Message, 4096),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		peers: make(map[ParticipantID]*peer),
	}
}

// Mount registers the hub's routes on r.
func (h *Hub) Mount(r *mux.Router) {
	r.Methods(http.MethodGet).Path(SessionPath).HandlerFunc(h.serveSession)
	r.Methods(http.MethodGet).Path(ChannelsPath).HandlerFunc(h.serveChannels)
}

func (h *Hub) serveChannels(w http.ResponseWriter, r *http.Request) {
	offers, _ := h.ListDataChannels(r.Context())
	writeJSON(w, http.StatusOK, offers)
}

func (h *Hub) serveSession(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	var hello frame
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	if err := conn.ReadJSON(&hello); err != nil || hello.Kind != frameHello {
		h.log.Warn("bad hello", "remote", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	p := &peer{info: Participant{ID: NewParticipantID(), Nick: hello.Nick}, conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.peers[p.info.ID] = p
	h.order = append(h.order, p.info.ID)
	h.wg.Add(1)
	offers := append([]Offer(nil), h.offers...)
	h.mu.Unlock()

	h.log.Info("participant joined", "participant", p.info.ID, "nick", p.info.Nick, "remote", r.RemoteAddr)
	welcome := frame{Kind: frameWelcome, Self: p.info.ID, Initiator: h.self.ID, Roster: h.Roster(), Offers: offers}
	if err := p.write(welcome); err != nil {
		h.log.Warn("welcome failed", "participant", p.info.ID, "error", err)
	}
	h.broadcastFrame(frame{Kind: frameRoster, Roster: h.Roster()}, p.info.ID)

	h.readLoop(p)
}

func (h *Hub) readLoop(p *peer) {
	defer h.wg.Done()
	defer h.dropPeer(p)
	for {
		var f frame
		if err := p.conn.ReadJSON(&f); err != nil {
			h.log.Info("participant disconnected", "participant", p.info.ID, "error", err)
			return
		}
		switch f.Kind {
		case frameMessage:
			if f.Msg == nil {
				continue
			}
			msg := *f.Msg
			msg.From = p.info.ID
			h.route(msg)
		case frameOffer:
			if f.Offer == nil {
				continue
			}
			offer := *f.Offer
			offer.From = p.info.ID
			h.addOffer(offer)
		default:
			h.log.Debug("ignoring frame", "kind", f.Kind, "participant", p.info.ID)
		}
	}
}

func (h *Hub) dropPeer(p *peer) {
	_ = p.conn.Close()
	h.mu.Lock()
	delete(h.peers, p.info.ID)
	for i, id := range h.order {
		if id == p.info.ID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	closed := h.closed
	h.mu.Unlock()
	if !closed {
		h.broadcastFrame(frame{Kind: frameRoster, Roster: h.Roster()}, "")
	}
}

// route delivers msg to its recipient, or to everyone but the sender.
func (h *Hub) route(msg Message) {
	if msg.To == h.self.ID {
		h.deliver(msg)
		return
	}
	if msg.To != "" {
		h.mu.RLock()
		p, ok := h.peers[msg.To]
		h.mu.RUnlock()
		if !ok {
			h.log.Warn("unicast to unknown participant", "to", msg.To, "topic", msg.Topic)
			return
		}
		if err := p.write(frame{Kind: frameMessage, Msg: &msg}); err != nil {
			h.log.Warn("unicast failed", "to", msg.To, "error", err)
		}
		return
	}
	if msg.From != h.self.ID {
		h.deliver(msg)
	}
	h.broadcastFrame(frame{Kind: frameMessage, Msg: &msg}, msg.From)
}

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}
	h.inbox <- msg
}

func (h *Hub) broadcastFrame(f frame, exclude ParticipantID) {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for _, id := range h.order {
		if id != exclude {
			peers = append(peers, h.peers[id])
		}
	}
	h.mu.RUnlock()
	for _, p := range peers {
		if err := p.write(f); err != nil {
			h.log.Warn("write failed", "participant", p.info.ID, "error", err)
		}
	}
}

func (h *Hub) addOffer(offer Offer) {
	h.mu.Lock()
	h.offers = append(h.offers, offer)
	offers := append([]Offer(nil), h.offers...)
	h.mu.Unlock()
	h.log.Info("data channel offered", "service", offer.Service, "url", offer.URL, "from", offer.From)
	h.broadcastFrame(frame{Kind: frameOffers, Offers: offers}, "")
}

func (h *Hub) LocalID() ParticipantID   { return h.self.ID }
func (h *Hub) Initiator() ParticipantID { return h.self.ID }

func (h *Hub) Roster() []Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Participant, 0, len(h.order)+1)
	out = append(out, h.self)
	for _, id := range h.order {
		out = append(out, h.peers[id].info)
	}
	return out
}

func (h *Hub) Send(ctx context.Context, topic string, payload []byte) error {
	if h.isClosed() {
		return ErrClosed
	}
	h.route(Message{From: h.self.ID, Topic: topic, Payload: payload})
	return nil
}

func (h *Hub) SendTo(ctx context.Context, to ParticipantID, topic string, payload []byte) error {
	if h.isClosed() {
		return ErrClosed
	}
	h.mu.RLock()
	_, ok := h.peers[to]
	h.mu.RUnlock()
	if !ok && to != h.self.ID {
		return ErrUnknownParticipant
	}
	h.route(Message{From: h.self.ID, To: to, Topic: topic, Payload: payload})
	return nil
}

func (h *Hub) Messages() <-chan Message { return h.inbox }

func (h *Hub) OfferDataChannel(ctx context.Context, offer Offer) error {
	if h.isClosed() {
		return ErrClosed
	}
	offer.From = h.self.ID
	h.addOffer(offer)
	return nil
}

func (h *Hub) ListDataChannels(ctx context.Context) ([]Offer, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}
	return append([]Offer(nil), h.offers...), nil
}

// Close disconnects every participant and closes Messages.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, p := range h.peers {
		_ = p.conn.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
	close(h.inbox)
	return nil
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}
