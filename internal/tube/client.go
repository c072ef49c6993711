package tube

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ClassPresenter/internal/logger"
)

// Client is a student's end of a Hub channel.
type Client struct {
	log  *logger.Logger
	conn *websocket.Conn
	wmu  sync.Mutex

	self      ParticipantID
	initiator ParticipantID

	mu     sync.RWMutex
	roster []Participant
	offers []Offer
	closed bool

	inbox chan Message
}

var _ Transport = (*Client)(nil)

// SessionURL turns a host:port into the hub's websocket endpoint.
func SessionURL(hostport string) string {
	u := url.URL{Scheme: "ws", Host: hostport, Path: SessionPath}
	return u.String()
}

// Dial joins the channel served at rawURL and waits for the hub's welcome.
func Dial(ctx context.Context, log *logger.Logger, rawURL, nick string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	if err := conn.WriteJSON(frame{Kind: frameHello, Nick: nick}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hello: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	var welcome frame
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("welcome: %w", err)
	}
	if welcome.Kind != frameWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("welcome: unexpected frame %q", welcome.Kind)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		log:       log.With("component", "tube.client", "self", welcome.Self),
		conn:      conn,
		self:      welcome.Self,
		initiator: welcome.Initiator,
		roster:    welcome.Roster,
		offers:    welcome.Offers,
		inbox:     make(chan Message, 4096),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.inbox)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if !c.isClosed() {
				c.log.Error("session channel lost", "error", err)
			}
			return
		}
		switch f.Kind {
		case frameMessage:
			if f.Msg != nil {
				c.inbox <- *f.Msg
			}
		case frameRoster:
			c.mu.Lock()
			c.roster = f.Roster
			c.mu.Unlock()
		case frameOffers:
			c.mu.Lock()
			c.offers = f.Offers
			c.mu.Unlock()
		default:
			c.log.Debug("ignoring frame", "kind", f.Kind)
		}
	}
}

func (c *Client) write(f frame) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

func (c *Client) LocalID() ParticipantID   { return c.self }
func (c *Client) Initiator() ParticipantID { return c.initiator }

func (c *Client) Roster() []Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Participant(nil), c.roster...)
}

func (c *Client) Send(ctx context.Context, topic string, payload []byte) error {
	return c.write(frame{Kind: frameMessage, Msg: &Message{From: c.self, Topic: topic, Payload: payload}})
}

func (c *Client) SendTo(ctx context.Context, to ParticipantID, topic string, payload []byte) error {
	return c.write(frame{Kind: frameMessage, Msg: &Message{From: c.self, To: to, Topic: topic, Payload: payload}})
}

func (c *Client) Messages() <-chan Message { return c.inbox }

func (c *Client) OfferDataChannel(ctx context.Context, offer Offer) error {
	offer.From = c.self
	return c.write(frame{Kind: frameOffer, Offer: &offer})
}

// ListDataChannels returns the offers last announced by the hub.
func (c *Client) ListDataChannels(ctx context.Context) ([]Offer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return append([]Offer(nil), c.offers...), nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
