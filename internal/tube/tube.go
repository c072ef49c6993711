// Package tube is the session transport: a one-to-many message channel with
// unicast, a participant roster and data-channel offers used to locate the
// deck bundle. Hub/Client carry it over websockets, Inproc keeps it in memory.
package tube

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type ParticipantID string

func NewParticipantID() ParticipantID { return ParticipantID(uuid.NewString()) }

type Participant struct {
	ID        ParticipantID `json:"id"`
	Nick      string        `json:"nick"`
	Initiator bool          `json:"initiator,omitempty"`
}

// Message is one topic-tagged payload. To is empty for one-to-many sends.
type Message struct {
	From    ParticipantID `json:"from"`
	To      ParticipantID `json:"to,omitempty"`
	Topic   string        `json:"topic"`
	Payload []byte        `json:"payload"`
}

// Offer advertises a byte stream (the deck bundle) that peers may fetch.
type Offer struct {
	Service string        `json:"service"`
	URL     string        `json:"url"`
	From    ParticipantID `json:"from"`
}

var (
	ErrClosed             = errors.New("tube: channel closed")
	ErrUnknownParticipant = errors.New("tube: unknown participant")
	ErrNotConnected       = errors.New("tube: not connected")
)

// Transport is what the sync engine and the deck transfer need from the
// presence layer. Messages is closed when the channel is lost for good.
type Transport interface {
	LocalID() ParticipantID
	Initiator() ParticipantID
	Roster() []Participant
	Send(ctx context.Context, topic string, payload []byte) error
	SendTo(ctx context.Context, to ParticipantID, topic string, payload []byte) error
	Messages() <-chan Message
	OfferDataChannel(ctx context.Context, offer Offer) error
	ListDataChannels(ctx context.Context) ([]Offer, error)
	Close() error
}

// Nick resolves a participant's display name from a roster.
func Nick(roster []Participant, id ParticipantID) (string, bool) {
	for _, p := range roster {
		if p.ID == id {
			return p.Nick, true
		}
	}
	return "", false
}
